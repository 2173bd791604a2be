package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"model_upload_backend/config"
	"model_upload_backend/models"
	"model_upload_backend/pkg/logging"
	"model_upload_backend/pkg/policy"
	"model_upload_backend/utils"

	"github.com/minio/minio-go/v7"
)

// Presigner turns an object key into a browser POST upload grant.
type Presigner interface {
	PresignPost(ctx context.Context, key string, expires time.Time) (postURL string, fields map[string]string, err error)
	Name() string
}

type Service struct {
	Client           *minio.Client
	Bucket           string
	Region           string
	StorageType      string
	FileKeyGenerator *utils.FileKeyGenerator

	presigner Presigner
	uploadTTL time.Duration
	now       func() time.Time
}

func InitStorageService(ctx context.Context, cfg *config.Config) (*Service, error) {
	var minioClient *minio.Client
	var err error

	switch cfg.StorageType {
	case "minio":
		minioClient, err = utils.CreateMinIOClient(cfg)
	case "s3":
		minioClient, err = utils.CreateS3Client(cfg)
	default:
		err = fmt.Errorf("unknown storage type %q", cfg.StorageType)
	}
	if err != nil {
		logging.Logger.Error("fail InitStorageService", "error", err)
		return nil, err
	}

	presigner, err := newPresigner(ctx, cfg, minioClient)
	if err != nil {
		logging.Logger.Error("fail InitStorageService", "signer", cfg.UploadSigner, "error", err)
		return nil, err
	}

	ss := NewService(minioClient, cfg.BucketName, cfg.BucketRegion, cfg.StorageType,
		utils.FileKeyStrategy(cfg.KeyStrategy), presigner, cfg.UploadTTL)
	if err := ss.EnsureBucketExists(ctx); err != nil {
		logging.Logger.Error("fail InitStorageService", "error", err)
		return nil, err
	}
	logging.Logger.Info("Storage service initialized",
		"type", cfg.StorageType,
		"bucket", cfg.BucketName,
		"region", cfg.BucketRegion,
		"signer", presigner.Name(),
		"keyStrategy", cfg.KeyStrategy,
	)
	return ss, nil
}

func NewService(client *minio.Client, bucket, region, storageType string, keyStrategy utils.FileKeyStrategy, presigner Presigner, uploadTTL time.Duration) *Service {
	return &Service{
		Client:           client,
		Bucket:           bucket,
		Region:           region,
		StorageType:      storageType,
		FileKeyGenerator: utils.NewFileKeyGenerator(keyStrategy, policy.KeyPrefix),
		presigner:        presigner,
		uploadTTL:        uploadTTL,
		now:              time.Now,
	}
}

func newPresigner(ctx context.Context, cfg *config.Config, client *minio.Client) (Presigner, error) {
	switch cfg.UploadSigner {
	case "native":
		return NewNativePresigner(BucketURL(cfg), cfg.BucketName, cfg.BucketRegion, cfg.BucketAccessID, cfg.BucketAccessKey)
	case "minio":
		return NewMinioPresigner(client, cfg.BucketName), nil
	case "aws":
		return NewAWSPresigner(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown upload signer %q", cfg.UploadSigner)
	}
}

// BucketURL is the form action browsers post to.
func BucketURL(cfg *config.Config) string {
	if cfg.StorageType == "s3" && cfg.BucketEndpoint == "" {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/", cfg.BucketName, cfg.BucketRegion)
	}
	scheme := "http"
	if cfg.UseSSL || cfg.StorageType == "s3" {
		scheme = "https"
	}
	u := url.URL{Scheme: scheme, Host: cfg.BucketEndpoint, Path: "/" + cfg.BucketName + "/"}
	return u.String()
}

func (ss *Service) EnsureBucketExists(ctx context.Context) error {
	exists, err := ss.Client.BucketExists(ctx, ss.Bucket)
	if err != nil {
		logging.Logger.Error("fail ensureBucketExists", "error", err)
		return err
	}
	if exists {
		logging.Logger.Info("Bucket already exists", "bucket", ss.Bucket)
		return nil
	}
	err = ss.Client.MakeBucket(ctx, ss.Bucket, minio.MakeBucketOptions{Region: ss.Region})
	if err != nil {
		if ss.StorageType == "s3" {
			logging.Logger.Warn("Could not create S3 bucket (might exist or no permission)",
				"bucket", ss.Bucket, "error", err)
			return nil
		}
		logging.Logger.Error("fail ensureBucketExists", "error", err)
		return err
	}
	logging.Logger.Info("Bucket created successfully", "bucket", ss.Bucket)
	return nil
}

// GeneratePresignedPostUpload issues a POST grant for one model artifact.
// The key is always under the "uploads" prefix.
func (ss *Service) GeneratePresignedPostUpload(ctx context.Context, filename, modelID string) (*models.UploadURLResp, error) {
	fileKey := ss.FileKeyGenerator.GenerateFileKey(filename, modelID)
	if !strings.HasPrefix(fileKey, policy.KeyPrefix+"/") {
		return nil, fmt.Errorf("generated key %q escapes the %s prefix", fileKey, policy.KeyPrefix)
	}
	expires := ss.now().Add(ss.uploadTTL)

	postURL, fields, err := ss.presigner.PresignPost(ctx, fileKey, expires)
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned POST: %w", err)
	}
	return &models.UploadURLResp{
		URL:      postURL,
		Fields:   fields,
		ModelID:  modelID,
		FileKey:  fileKey,
		Expires:  expires.UTC(),
		Provider: ss.presigner.Name(),
	}, nil
}

func (ss *Service) FileExists(ctx context.Context, fileKey string) (bool, error) {
	_, err := ss.Client.StatObject(ctx, ss.Bucket, fileKey, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RemoveFile deletes an artifact; a missing object is not an error.
func (ss *Service) RemoveFile(ctx context.Context, fileKey string) error {
	err := ss.Client.RemoveObject(ctx, ss.Bucket, fileKey, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return err
	}
	return nil
}

func (ss *Service) Ping(ctx context.Context) error {
	ok, err := ss.Client.BucketExists(ctx, ss.Bucket)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("bucket " + ss.Bucket + " does not exist")
	}
	return nil
}
