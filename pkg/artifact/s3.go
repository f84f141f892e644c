package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"time"

	gos3 "pptxd/pkg/s3"
)

// S3Backend stores blobs in one bucket of an S3-compatible service.
type S3Backend struct {
	client *gos3.Client
	bucket string
}

// NewS3Backend makes sure bucket exists before returning.
func NewS3Backend(ctx context.Context, client *gos3.Client, bucket string) (*S3Backend, error) {
	if client == nil {
		return nil, errors.New("s3 client is required")
	}
	if bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if err := client.EnsureBucket(ctx, bucket); err != nil {
		return nil, err
	}
	return &S3Backend{client: client, bucket: bucket}, nil
}

func (b *S3Backend) Name() string { return "s3" }

func (b *S3Backend) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := b.client.PutObject(ctx, b.bucket, key, bytes.NewReader(data), int64(len(data)), checksum(data), contentType); err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", b.bucket, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", b.bucket, key), nil
}

func (b *S3Backend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.GetObject(ctx, b.bucket, key)
	if errors.Is(err, gos3.ErrNotFound) {
		return nil, ErrNotFound
	}
	return data, err
}

func (b *S3Backend) Delete(ctx context.Context, key string) error {
	return b.client.DeleteObject(ctx, b.bucket, key)
}

func (b *S3Backend) List(ctx context.Context, prefix string) ([]string, error) {
	return b.client.ListKeys(ctx, b.bucket, prefix)
}

// Handle presigns a GET that downloads under the artifact's filename.
func (b *S3Backend) Handle(ctx context.Context, a Artifact, ttl time.Duration) (string, error) {
	return b.client.PresignGet(ctx, b.bucket, a.Key, attachment(a.Filename), ttl)
}

func attachment(filename string) string {
	if filename == "" {
		return "attachment"
	}
	return mime.FormatMediaType("attachment", map[string]string{"filename": filename})
}
