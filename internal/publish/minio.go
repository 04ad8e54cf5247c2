package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config describes the object storage target
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Prefix    string
	Region    string
}

// MinIO uploads archives to S3 compatible object storage
type MinIO struct {
	client *minio.Client
	bucket string
	prefix string
	region string
}

// NewMinIO creates an uploader. The endpoint may be a host:port or a URL.
func NewMinIO(cfg Config) (*MinIO, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("credentials are required")
	}

	endpoint, useSSL := parseEndpoint(cfg.Endpoint, cfg.UseSSL)
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinIO{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		region: cfg.Region,
	}, nil
}

func parseEndpoint(endpoint string, useSSL bool) (string, bool) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint, useSSL
	}
	if u.Scheme == "https" {
		useSSL = true
	}
	return u.Host, useSSL
}

// ObjectKey returns the key an archive is stored under
func (m *MinIO) ObjectKey(archivePath string) string {
	return path.Join(m.prefix, filepath.Base(archivePath))
}

// Upload stores the archive, creating the bucket when it does not exist
func (m *MinIO) Upload(ctx context.Context, archivePath string) (string, error) {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return "", fmt.Errorf("failed to check bucket %s: %w", m.bucket, err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region}); err != nil {
			return "", fmt.Errorf("failed to create bucket %s: %w", m.bucket, err)
		}
		slog.Info("Created bucket", "bucket", m.bucket)
	}

	key := m.ObjectKey(archivePath)
	info, err := m.client.FPutObject(ctx, m.bucket, key, archivePath, minio.PutObjectOptions{
		ContentType: "application/zip",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", archivePath, err)
	}

	slog.Info("Published archive", "bucket", m.bucket, "key", key, "size_bytes", info.Size)
	return key, nil
}
