package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/plastinin/ot2protocol/internal/config"
)

// ErrObjectNotFound is returned when a key does not exist in the bucket
var ErrObjectNotFound = errors.New("object not found")

const keyPrefix = "jobs"

// S3Storage keeps protocol inputs and outputs in S3/MinIO
type S3Storage struct {
	client *minio.Client
	bucket string
}

// NewS3Storage connects to the bucket, creating it when missing
func NewS3Storage(ctx context.Context, cfg config.S3Config) (*S3Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &S3Storage{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// ObjectKey builds a key of the form jobs/year/month/day/uuid/filename
func ObjectKey(now time.Time, id uuid.UUID, fileName string) string {
	return path.Join(
		keyPrefix,
		now.Format("2006"),
		now.Format("01"),
		now.Format("02"),
		id.String(),
		SafeName(fileName),
	)
}

// SafeName strips directories that some browsers send with the file name
func SafeName(fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, `\`, "/"))
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == "/" || name == ".." {
		return "file"
	}
	return name
}

// Upload stores a file and returns its key
func (s *S3Storage) Upload(ctx context.Context, fileName string, contentType string, reader io.Reader, size int64) (string, error) {
	fileKey := ObjectKey(time.Now(), uuid.New(), fileName)

	_, err := s.client.PutObject(ctx, s.bucket, fileKey, reader, size, minio.PutObjectOptions{
		ContentType:        contentType,
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", SafeName(fileName)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	return fileKey, nil
}

// Download opens a stored file
func (s *S3Storage) Download(ctx context.Context, fileKey string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, fileKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	// GetObject is lazy, Stat surfaces a missing key
	_, err = obj.Stat()
	if err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, fileKey)
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}

	return obj, nil
}

// Delete removes a stored file. Removing a missing key is not an error.
func (s *S3Storage) Delete(ctx context.Context, fileKey string) error {
	err := s.client.RemoveObject(ctx, s.bucket, fileKey, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// GetURL returns a presigned download URL valid for one hour
func (s *S3Storage) GetURL(ctx context.Context, fileKey string) (string, error) {
	url, err := s.client.PresignedGetObject(ctx, s.bucket, fileKey, time.Hour, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url.String(), nil
}

// Ping checks that the bucket is reachable
func (s *S3Storage) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}
