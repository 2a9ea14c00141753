// Package objectstore fetches and stores exercise audio in MinIO / S3 and
// resolves the audio references carried by tasks.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"speech-assessment-platform/backend/internal/config"
)

// MinioClient holds the MinIO client and the default bucket name.
type MinioClient struct {
	Client     *minio.Client
	BucketName string
	logger     *zap.Logger
}

// NewMinioClient connects to the configured endpoint. When ensureBucket is
// set the bucket is created if it does not exist yet; the exercise API does
// that, the worker only reads.
func NewMinioClient(ctx context.Context, cfg config.ObjectStoreConfig, ensureBucket bool, logger *zap.Logger) (*MinioClient, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("object store endpoint and bucket must be set")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	if ensureBucket {
		exists, err := client.BucketExists(ctx, cfg.Bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to check if MinIO bucket '%s' exists: %w", cfg.Bucket, err)
		}
		if !exists {
			logger.Info("creating object store bucket", zap.String("bucket", cfg.Bucket))
			if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
				return nil, fmt.Errorf("failed to create MinIO bucket '%s': %w", cfg.Bucket, err)
			}
		}
	}

	return &MinioClient{Client: client, BucketName: cfg.Bucket, logger: logger}, nil
}

// UploadFile stores reader under a fresh object name that keeps the original
// file extension, and returns that name.
func (mc *MinioClient) UploadFile(ctx context.Context, originalFilename string, reader io.Reader, size int64, contentType string) (string, error) {
	objectName := uuid.NewString() + filepath.Ext(originalFilename)

	info, err := mc.Client.PutObject(ctx, mc.BucketName, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to MinIO (bucket: %s, object: %s): %w", mc.BucketName, objectName, err)
	}

	mc.logger.Debug("uploaded audio", zap.String("object", objectName), zap.Int64("size", info.Size), zap.String("etag", info.ETag))
	return objectName, nil
}

// DeleteFile removes an object from the default bucket.
func (mc *MinioClient) DeleteFile(ctx context.Context, objectName string) error {
	if err := mc.Client.RemoveObject(ctx, mc.BucketName, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object '%s' from MinIO bucket '%s': %w", objectName, mc.BucketName, err)
	}
	return nil
}

// GetFileReader opens an object. An empty bucket means the default bucket.
// The caller is responsible for closing the reader.
func (mc *MinioClient) GetFileReader(ctx context.Context, bucket, objectName string) (io.ReadCloser, int64, error) {
	if bucket == "" {
		bucket = mc.BucketName
	}
	object, err := mc.Client.GetObject(ctx, bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", objectName, bucket, err)
	}

	// GetObject is lazy; Stat surfaces a missing object or bad credentials.
	stat, err := object.Stat()
	if err != nil {
		object.Close()
		return nil, 0, fmt.Errorf("failed to get object stats for '%s': %w", objectName, err)
	}
	return object, stat.Size, nil
}

// ObjectURL is the task reference for an object in the default bucket.
func (mc *MinioClient) ObjectURL(objectName string) string {
	return "s3://" + mc.BucketName + "/" + objectName
}
