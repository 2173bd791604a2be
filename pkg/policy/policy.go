// Package policy builds S3 browser-upload POST policies: a time boxed,
// size bounded and prefix scoped description of what an upload form may do.
package policy

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"model_upload_backend/pkg/sigv4"
)

const (
	KeyPrefix     = "uploads"
	ACLPrivate    = "private"
	MaxUploadSize = 10 * 1024 * 1024

	expirationFormat = "2006-01-02T15:04:05.000Z"
)

// FarFuture is the expiration used when none is requested.
var FarFuture = time.Date(2050, time.January, 1, 0, 0, 0, 0, time.UTC)

var (
	ErrExpired     = errors.New("policy: expiration is not in the future")
	ErrMissingKeys = errors.New("policy: bucket and access key id are required")
)

// Input is everything needed to describe one upload grant.
type Input struct {
	Bucket      string
	AccessKeyID string
	Scope       sigv4.Scope
	Expiration  time.Time
	// Now defaults to time.Now; tests pin it.
	Now func() time.Time
}

// Policy is the decoded form of a POST policy document.
type Policy struct {
	Expiration time.Time
	Bucket     string
	ACL        string
	KeyPrefix  string
	MinSize    int64
	MaxSize    int64
	Credential string
	Algorithm  string
	AmzDate    string
}

// Build validates in and returns the policy it describes.
func Build(in Input) (*Policy, error) {
	if in.Bucket == "" || in.AccessKeyID == "" {
		return nil, ErrMissingKeys
	}
	now := time.Now
	if in.Now != nil {
		now = in.Now
	}
	exp := in.Expiration
	if exp.IsZero() {
		exp = FarFuture
	}
	if !exp.After(now()) {
		return nil, fmt.Errorf("%w: %s", ErrExpired, exp.UTC().Format(time.RFC3339))
	}
	return &Policy{
		Expiration: exp.UTC(),
		Bucket:     in.Bucket,
		ACL:        ACLPrivate,
		KeyPrefix:  KeyPrefix,
		MinSize:    0,
		MaxSize:    MaxUploadSize,
		Credential: in.Scope.Credential(in.AccessKeyID),
		Algorithm:  sigv4.Algorithm,
		AmzDate:    in.Scope.AmzDate(),
	}, nil
}

type document struct {
	Expiration string `json:"expiration"`
	Conditions []any  `json:"conditions"`
}

// MarshalJSON renders the policy in the object store's wire format.
func (p *Policy) MarshalJSON() ([]byte, error) {
	return json.Marshal(document{
		Expiration: p.Expiration.Format(expirationFormat),
		Conditions: []any{
			map[string]string{"bucket": p.Bucket},
			map[string]string{"acl": p.ACL},
			[]any{"starts-with", "$key", p.KeyPrefix},
			map[string]string{"x-amz-algorithm": p.Algorithm},
			map[string]string{"x-amz-credential": p.Credential},
			map[string]string{"x-amz-date": p.AmzDate},
			[]any{"content-length-range", p.MinSize, p.MaxSize},
		},
	})
}

// Encode returns the base64 document. Signatures cover exactly these bytes.
func (p *Policy) Encode() (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal policy: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// FormFields are the multipart fields an upload form has to carry, in
// addition to the file part.
func (p *Policy) FormFields(key, encoded, signature string) map[string]string {
	return map[string]string{
		"key":              key,
		"bucket":           p.Bucket,
		"acl":              p.ACL,
		"policy":           encoded,
		"x-amz-algorithm":  p.Algorithm,
		"x-amz-credential": p.Credential,
		"x-amz-date":       p.AmzDate,
		"x-amz-signature":  signature,
	}
}

// Allows evaluates the key and length conditions locally.
func (p *Policy) Allows(key string, size int64, at time.Time) error {
	switch {
	case !at.Before(p.Expiration):
		return ErrExpired
	case !strings.HasPrefix(key, p.KeyPrefix):
		return fmt.Errorf("policy: key %q does not start with %q", key, p.KeyPrefix)
	case size < p.MinSize || size > p.MaxSize:
		return fmt.Errorf("policy: size %d outside [%d, %d]", size, p.MinSize, p.MaxSize)
	}
	return nil
}

// Signed is a policy together with its encoding and signature.
type Signed struct {
	Policy    *Policy
	Encoded   string
	Signature string
}

// BuildAndSign builds the policy, encodes it and signs the encoding with a
// key derived from secret.
func BuildAndSign(in Input, secret string) (*Signed, error) {
	p, err := Build(in)
	if err != nil {
		return nil, err
	}
	encoded, err := p.Encode()
	if err != nil {
		return nil, err
	}
	signature, err := sigv4.SignPolicy(secret, in.Scope, encoded)
	if err != nil {
		return nil, err
	}
	return &Signed{Policy: p, Encoded: encoded, Signature: signature}, nil
}
