// Package objstore uploads benefit images to S3-compatible storage.
package objstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/cafeteria-hr/service_layer/internal/config"
)

// Uploader stores image files and returns a public URL for each.
type Uploader interface {
	Enabled() bool
	Upload(ctx context.Context, key string, contentType string, size int64, r io.Reader) (url string, err error)
	Remove(ctx context.Context, key string) error
}

// KeyFor builds a unique object key for an uploaded file, keeping the
// original extension.
func KeyFor(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(prefix, uuid.NewString()+ext)
}

// KeyFromURL recovers the object key from a URL that Upload produced for a
// KeyFor key. External URLs attached directly report false.
func KeyFromURL(url string) (string, bool) {
	if i := strings.Index(url, "/benefits/"); i >= 0 {
		return url[i+1:], true
	}
	return "", false
}

// S3Uploader stores objects in a single bucket via the S3 API.
type S3Uploader struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
}

// NewS3Uploader connects to the configured endpoint and verifies the bucket
// exists, creating it when missing.
func NewS3Uploader(ctx context.Context, cfg config.S3Config) (*S3Uploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	base := cfg.PublicBaseURL
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}
	return &S3Uploader{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(base, "/"),
	}, nil
}

// Enabled reports that uploads go to real storage.
func (u *S3Uploader) Enabled() bool { return true }

// Upload writes the object and returns its public URL.
func (u *S3Uploader) Upload(ctx context.Context, key, contentType string, size int64, r io.Reader) (string, error) {
	_, err := u.client.PutObject(ctx, u.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return u.publicBaseURL + "/" + key, nil
}

// Remove deletes the object.
func (u *S3Uploader) Remove(ctx context.Context, key string) error {
	if err := u.client.RemoveObject(ctx, u.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// NoopUploader rejects uploads. Image URLs supplied directly in requests
// are still stored.
type NoopUploader struct{}

func (NoopUploader) Enabled() bool { return false }

func (NoopUploader) Upload(context.Context, string, string, int64, io.Reader) (string, error) {
	return "", fmt.Errorf("object storage is not configured")
}

func (NoopUploader) Remove(context.Context, string) error { return nil }
