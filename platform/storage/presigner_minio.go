package storage

import (
	"context"
	"time"

	"model_upload_backend/pkg/policy"

	"github.com/minio/minio-go/v7"
)

// MinioPresigner delegates policy construction and signing to minio-go. It
// pins the exact key rather than the "uploads" prefix.
type MinioPresigner struct {
	client *minio.Client
	bucket string
}

func NewMinioPresigner(client *minio.Client, bucket string) *MinioPresigner {
	return &MinioPresigner{client: client, bucket: bucket}
}

func (p *MinioPresigner) Name() string { return "minio" }

func (p *MinioPresigner) PresignPost(ctx context.Context, key string, expires time.Time) (string, map[string]string, error) {
	pp := minio.NewPostPolicy()
	if err := pp.SetBucket(p.bucket); err != nil {
		return "", nil, err
	}
	if err := pp.SetKey(key); err != nil {
		return "", nil, err
	}
	if err := pp.SetExpires(expires); err != nil {
		return "", nil, err
	}
	if err := pp.SetContentLengthRange(0, policy.MaxUploadSize); err != nil {
		return "", nil, err
	}

	postURL, formData, err := p.client.PresignedPostPolicy(ctx, pp)
	if err != nil {
		return "", nil, err
	}
	return postURL.String(), formData, nil
}
