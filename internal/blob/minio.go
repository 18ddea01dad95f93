package blob

import (
	"context"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hl-compare/hl-compare/internal/config"
)

// MinIO stores uploads in an S3-compatible bucket and serves them through
// presigned URLs.
type MinIO struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

// NewMinIO connects and creates the bucket if it does not exist.
func NewMinIO(ctx context.Context, cfg config.MinIOConfig) (*MinIO, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, eris.Wrap(err, "blob: minio client")
	}

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, eris.Wrapf(err, "blob: check bucket %s", cfg.Bucket)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, eris.Wrapf(err, "blob: make bucket %s", cfg.Bucket)
		}
		zap.L().Info("blob: created bucket", zap.String("bucket", cfg.Bucket))
	}

	return newMinIO(cli, cfg.Bucket, cfg.PresignTTLMins), nil
}

func newMinIO(cli *minio.Client, bucket string, ttlMins int) *MinIO {
	ttl := time.Duration(ttlMins) * time.Minute
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MinIO{client: cli, bucket: bucket, ttl: ttl}
}

// Put uploads r under a new key.
func (m *MinIO) Put(ctx context.Context, name string, r io.Reader, size int64) (Object, error) {
	key := NewKey(name)
	info, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType(name),
	})
	if err != nil {
		return Object{}, eris.Wrapf(err, "blob: put %s", key)
	}
	u, err := m.URL(ctx, key)
	if err != nil {
		return Object{}, err
	}
	return Object{Key: key, Name: name, Size: info.Size, URL: u}, nil
}

// Open streams the object.
func (m *MinIO) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, eris.Wrapf(err, "blob: get %s", key)
	}
	return obj, nil
}

// URL returns a presigned GET URL valid for the configured TTL.
func (m *MinIO) URL(ctx context.Context, key string) (string, error) {
	if !ValidKey(key) {
		return "", eris.Errorf("blob: invalid key %q", key)
	}
	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, m.ttl, url.Values{})
	if err != nil {
		return "", eris.Wrapf(err, "blob: presign %s", key)
	}
	return u.String(), nil
}
