package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config configures S3Storage.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string // optional, skips the bucket location lookup
	// BaseURL prefixes the /uploads links handed to clients; the bucket
	// itself stays private
	BaseURL string
}

// S3Storage stores attachments in a MinIO/S3 bucket.
type S3Storage struct {
	cfg    S3Config
	client *minio.Client
}

// NewS3Storage creates the client; call EnsureBucket before first use.
func NewS3Storage(cfg S3Config) (*S3Storage, error) {
	cl, err := minio.New(strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://"), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}
	return &S3Storage{cfg: cfg, client: cl}, nil
}

// EnsureBucket creates the bucket when it does not exist.
func (s *S3Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		return s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{})
	}
	return nil
}

func (s *S3Storage) Put(ctx context.Context, kind Kind, name, contentType string, data []byte) (string, error) {
	filename := objectName(name, contentType)
	key := string(kind) + "/" + filename
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return servedURL(s.cfg.BaseURL, kind, filename), nil
}

func (s *S3Storage) Owns(link string) bool {
	_, _, ok := parseServedURL(s.cfg.BaseURL, link)
	return ok
}

// PresignGet signs a short-lived GET for a served attachment.
func (s *S3Storage) PresignGet(ctx context.Context, kind, filename string, ttl time.Duration) (*url.URL, error) {
	if !ValidName(kind, filename) {
		return nil, fmt.Errorf("invalid object %s/%s", kind, filename)
	}
	return s.client.PresignedGetObject(ctx, s.cfg.Bucket, kind+"/"+filename, ttl, nil)
}
