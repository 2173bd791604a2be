package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"model_upload_backend/config"
	"model_upload_backend/pkg/policy"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// AWSPresigner issues POST grants through the AWS SDK presign client.
type AWSPresigner struct {
	client *s3.PresignClient
	bucket string
}

func NewAWSPresigner(ctx context.Context, cfg *config.Config) (*AWSPresigner, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.BucketRegion),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.BucketAccessID, cfg.BucketAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s3c := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BucketEndpoint != "" {
			o.BaseEndpoint = aws.String(endpointURL(cfg))
			o.UsePathStyle = true // minio/localstack friendliness
		}
	})
	return &AWSPresigner{client: s3.NewPresignClient(s3c), bucket: cfg.BucketName}, nil
}

func endpointURL(cfg *config.Config) string {
	if strings.Contains(cfg.BucketEndpoint, "://") {
		return cfg.BucketEndpoint
	}
	if cfg.UseSSL || cfg.StorageType == "s3" {
		return "https://" + cfg.BucketEndpoint
	}
	return "http://" + cfg.BucketEndpoint
}

func (p *AWSPresigner) Name() string { return "aws" }

func (p *AWSPresigner) PresignPost(ctx context.Context, key string, expires time.Time) (string, map[string]string, error) {
	ttl := time.Until(expires)
	if ttl <= 0 {
		return "", nil, policy.ErrExpired
	}
	req, err := p.client.PresignPostObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignPostOptions) {
		o.Expires = ttl
		o.Conditions = []interface{}{
			[]interface{}{"starts-with", "$key", policy.KeyPrefix},
			[]interface{}{"content-length-range", 0, policy.MaxUploadSize},
		}
	})
	if err != nil {
		return "", nil, err
	}
	return req.URL, req.Values, nil
}
