// Package objstore wraps MinIO object storage for invoice documents.
package objstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config carries connection settings for the object store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Client is the process-wide object store client. It is constructed once at
// startup and shared by request handlers; the underlying minio client is safe
// for concurrent use.
type Client struct {
	mc      *minio.Client
	logger  *slog.Logger
	timeout time.Duration
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Name         string
	Size         int64
	LastModified time.Time
	ETag         string
}

// New dials the object store and verifies the connection.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("platform/objstore: new client: %w", err)
	}

	client := &Client{mc: mc, logger: logger, timeout: 30 * time.Second}
	if err := client.Ping(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// Ping verifies the connection by listing buckets.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := c.mc.ListBuckets(ctx); err != nil {
		return fmt.Errorf("platform/objstore: ping: %w", err)
	}
	return nil
}

// EnsureBuckets creates any missing buckets.
func (c *Client) EnsureBuckets(ctx context.Context, names ...string) error {
	for _, name := range names {
		opCtx, cancel := context.WithTimeout(ctx, c.timeout)
		exists, err := c.mc.BucketExists(opCtx, name)
		if err != nil {
			cancel()
			return fmt.Errorf("platform/objstore: bucket exists %s: %w", name, err)
		}
		if !exists {
			if err := c.mc.MakeBucket(opCtx, name, minio.MakeBucketOptions{}); err != nil {
				cancel()
				return fmt.Errorf("platform/objstore: make bucket %s: %w", name, err)
			}
			if c.logger != nil {
				c.logger.Info("created bucket", slog.String("bucket", name))
			}
		}
		cancel()
	}
	return nil
}

// UploadFile stores a local file under bucket/object.
func (c *Client) UploadFile(ctx context.Context, bucket, object, filePath, contentType string, metadata map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	_, err := c.mc.FPutObject(ctx, bucket, object, filePath, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: metadata,
	})
	if err != nil {
		return fmt.Errorf("platform/objstore: upload %s/%s: %w", bucket, object, err)
	}
	return nil
}

// Put streams data into bucket/object.
func (c *Client) Put(ctx context.Context, bucket, object string, r io.Reader, size int64, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	_, err := c.mc.PutObject(ctx, bucket, object, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("platform/objstore: put %s/%s: %w", bucket, object, err)
	}
	return nil
}

// Remove deletes bucket/object.
func (c *Client) Remove(ctx context.Context, bucket, object string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.mc.RemoveObject(ctx, bucket, object, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("platform/objstore: remove %s/%s: %w", bucket, object, err)
	}
	return nil
}

// PresignGet mints a time-limited download URL for bucket/object.
func (c *Client) PresignGet(ctx context.Context, bucket, object string, expiry time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	u, err := c.mc.PresignedGetObject(ctx, bucket, object, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("platform/objstore: presign get %s/%s: %w", bucket, object, err)
	}
	return u.String(), nil
}

// PresignPut mints a time-limited upload URL for bucket/object.
func (c *Client) PresignPut(ctx context.Context, bucket, object string, expiry time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	u, err := c.mc.PresignedPutObject(ctx, bucket, object, expiry)
	if err != nil {
		return "", fmt.Errorf("platform/objstore: presign put %s/%s: %w", bucket, object, err)
	}
	return u.String(), nil
}

// Stat returns metadata for bucket/object.
func (c *Client) Stat(ctx context.Context, bucket, object string) (ObjectInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	info, err := c.mc.StatObject(ctx, bucket, object, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("platform/objstore: stat %s/%s: %w", bucket, object, err)
	}
	return ObjectInfo{Name: info.Key, Size: info.Size, LastModified: info.LastModified, ETag: info.ETag}, nil
}

// ListPrefix returns objects under the given prefix.
func (c *Client) ListPrefix(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	var objects []ObjectInfo
	for obj := range c.mc.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("platform/objstore: list %s/%s: %w", bucket, prefix, obj.Err)
		}
		objects = append(objects, ObjectInfo{Name: obj.Key, Size: obj.Size, LastModified: obj.LastModified, ETag: obj.ETag})
	}
	return objects, nil
}
