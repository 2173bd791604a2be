package storage

import (
	"context"
	"errors"
	"time"

	"model_upload_backend/pkg/policy"
	"model_upload_backend/pkg/sigv4"
)

// NativePresigner signs POST policies with pkg/policy and pkg/sigv4. The
// secret stays in this process; callers only ever see the signature.
type NativePresigner struct {
	bucketURL   string
	bucket      string
	region      string
	accessKeyID string
	secret      string
	now         func() time.Time
}

func NewNativePresigner(bucketURL, bucket, region, accessKeyID, secret string) (*NativePresigner, error) {
	if secret == "" || accessKeyID == "" {
		return nil, sigv4.ErrMissingSecret
	}
	if bucketURL == "" || bucket == "" {
		return nil, errors.New("native presigner: bucket url and name are required")
	}
	return &NativePresigner{
		bucketURL:   bucketURL,
		bucket:      bucket,
		region:      region,
		accessKeyID: accessKeyID,
		secret:      secret,
		now:         time.Now,
	}, nil
}

func (p *NativePresigner) Name() string { return "native" }

func (p *NativePresigner) PresignPost(_ context.Context, key string, expires time.Time) (string, map[string]string, error) {
	now := p.now()
	signed, err := policy.BuildAndSign(policy.Input{
		Bucket:      p.bucket,
		AccessKeyID: p.accessKeyID,
		Scope:       sigv4.NewScope(now, p.region, "s3"),
		Expiration:  expires,
		Now:         func() time.Time { return now },
	}, p.secret)
	if err != nil {
		return "", nil, err
	}
	// refuse to hand out a grant the store would reject for this key
	if err := signed.Policy.Allows(key, 0, now); err != nil {
		return "", nil, err
	}
	return p.bucketURL, signed.Policy.FormFields(key, signed.Encoded, signed.Signature), nil
}
