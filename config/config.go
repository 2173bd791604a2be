package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	HttpPort     string
	AllowOrigins string

	// S3/MinIO
	BucketEndpoint  string
	BucketAccessID  string
	BucketAccessKey string
	BucketName      string
	BucketRegion    string
	UseSSL          bool   // MinIO: false, S3: true
	StorageType     string // "minio" or "s3"
	UploadSigner    string // "native", "minio" or "aws"
	KeyStrategy     string // "model_scoped", "date_based" or "hash_based"

	// Redis
	RedisURL      string
	RedisPassword string

	// Postgres
	Host     string
	User     string
	Password string
	DBName   string
	Port     string

	// uploads
	UploadTTL      time.Duration
	OrphanTTL      time.Duration
	ReaperInterval time.Duration
	RunLockTTL     time.Duration
}

var ErrMissingSecret = errors.New("config: signing credentials are not configured")

func LoadConfig() *Config {
	return &Config{
		HttpPort:        getenv("PORT", "3000"),
		AllowOrigins:    getenv("ALLOWORIGINS", "*"),
		BucketEndpoint:  os.Getenv("BUCKET_ENDPOINT"),
		BucketAccessID:  os.Getenv("BUCKET_ACCESS_ID"),
		BucketAccessKey: os.Getenv("BUCKET_ACCESS_KEY"),
		BucketName:      os.Getenv("BUCKET_NAME"),
		BucketRegion:    getenv("BUCKET_REGION", "us-east-1"),
		UseSSL:          os.Getenv("BUCKET_USE_SSL") == "true",
		StorageType:     getenv("STORAGE_TYPE", "minio"),
		UploadSigner:    getenv("UPLOAD_SIGNER", "native"),
		KeyStrategy:     getenv("STORAGE_KEY_STRATEGY", "model_scoped"),
		RedisURL:        os.Getenv("REDIS_URL"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		Host:            os.Getenv("PG_HOST"),
		User:            os.Getenv("PG_USER"),
		Password:        os.Getenv("PG_PASSWORD"),
		DBName:          os.Getenv("PG_DB"),
		Port:            getenv("PG_PORT", "5432"),
		UploadTTL:       duration("UPLOAD_TTL", 15*time.Minute),
		OrphanTTL:       duration("ORPHAN_TTL", 24*time.Hour),
		ReaperInterval:  duration("REAPER_INTERVAL", 5*time.Minute),
		RunLockTTL:      duration("RUN_LOCK_TTL", 30*time.Second),
	}
}

// Validate reports the first setting that makes the server unusable. The
// signing secret is checked here so a missing one fails at startup rather
// than on the first upload.
func (c *Config) Validate() error {
	if c.BucketAccessID == "" || c.BucketAccessKey == "" {
		return ErrMissingSecret
	}
	if c.BucketName == "" {
		return errors.New("config: BUCKET_NAME is required")
	}
	switch c.StorageType {
	case "minio", "s3":
	default:
		return fmt.Errorf("config: unknown STORAGE_TYPE %q", c.StorageType)
	}
	switch c.UploadSigner {
	case "native", "minio", "aws":
	default:
		return fmt.Errorf("config: unknown UPLOAD_SIGNER %q", c.UploadSigner)
	}
	switch c.KeyStrategy {
	case "model_scoped", "date_based", "hash_based":
	default:
		return fmt.Errorf("config: unknown STORAGE_KEY_STRATEGY %q", c.KeyStrategy)
	}
	if c.StorageType == "minio" && c.BucketEndpoint == "" {
		return errors.New("config: BUCKET_ENDPOINT is required for minio storage")
	}
	for _, d := range []struct {
		name string
		val  time.Duration
	}{
		{"UPLOAD_TTL", c.UploadTTL},
		{"ORPHAN_TTL", c.OrphanTTL},
		{"REAPER_INTERVAL", c.ReaperInterval},
		{"RUN_LOCK_TTL", c.RunLockTTL},
	} {
		if d.val <= 0 {
			return fmt.Errorf("config: %s must be positive, got %s", d.name, d.val)
		}
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// duration accepts Go durations ("15m") or plain seconds ("900").
func duration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if sec, err := strconv.Atoi(v); err == nil {
		return time.Duration(sec) * time.Second
	}
	return def
}
