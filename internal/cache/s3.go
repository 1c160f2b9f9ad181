package cache

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config describes an S3-compatible object store used as a shared cache
// across runner hosts.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
	Prefix    string `yaml:"prefix"`
}

// S3Cache stores zstd-compressed entries as objects in a bucket.
type S3Cache struct {
	client *minio.Client
	bucket string
	prefix string
	enc    *zstd.Encoder
	dec    *zstd.Decoder
}

// NewS3Cache connects to the configured object store. Connection errors
// surface here so a misconfigured daemon fails at startup, not lazily on
// the first advisory cache call.
func NewS3Cache(cfg S3Config) (*S3Cache, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 cache client: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &S3Cache{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, enc: enc, dec: dec}, nil
}

func (c *S3Cache) objectName(key string) string {
	if c.prefix == "" {
		return key + ".zst"
	}
	return c.prefix + "/" + key + ".zst"
}

// Restore fetches and decompresses the object for key. A NoSuchKey
// response is a miss; any other failure is an advisory error.
func (c *S3Cache) Restore(ctx context.Context, key string) ([]byte, bool, error) {
	obj, err := c.client.GetObject(ctx, c.bucket, c.objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch cache object: %w", err)
	}
	defer obj.Close()

	compressed, err := io.ReadAll(obj)
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cache object: %w", err)
	}

	data, err := c.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, false, fmt.Errorf("corrupt cache object %q: %w", key, err)
	}
	return data, true, nil
}

// Save compresses and uploads the entry. Overwriting an existing object
// is fine: entries for one key are interchangeable by construction.
func (c *S3Cache) Save(ctx context.Context, key string, data []byte) error {
	compressed := c.enc.EncodeAll(data, nil)
	_, err := c.client.PutObject(ctx, c.bucket, c.objectName(key),
		bytes.NewReader(compressed), int64(len(compressed)),
		minio.PutObjectOptions{ContentType: "application/zstd"})
	if err != nil {
		return fmt.Errorf("failed to upload cache object: %w", err)
	}
	return nil
}
