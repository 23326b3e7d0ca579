package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// S3Storage keeps ad media in a MinIO/S3 bucket.
type S3Storage struct {
	client    *minio.Client
	bucket    string
	publicURL string
	breaker   *gobreaker.CircuitBreaker
	logger    *logger.Logger
}

// breakerFailures is the number of consecutive object store failures that
// opens the breaker.
const breakerFailures = 5

func newBreaker(name string, openFor time.Duration, log *logger.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
}

// NewS3Storage connects to the endpoint and makes sure the bucket exists.
// publicURL prefixes keys in URL; when empty the endpoint URL is used.
func NewS3Storage(endpoint, accessKey, secretKey, bucketName, publicURL string, useSSL bool, log *logger.Logger) (*S3Storage, error) {
	log.Info("Initializing S3 storage", zap.String("endpoint", endpoint), zap.String("bucket", bucketName), zap.Bool("use_ssl", useSSL))

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client for endpoint %s: %w", endpoint, err)
	}

	ctx := context.Background()
	if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
		exists, existsErr := client.BucketExists(ctx, bucketName)
		if existsErr != nil || !exists {
			log.Error("Failed to make or verify bucket", zap.String("bucket", bucketName), zap.Error(err), zap.NamedError("exists_error", existsErr))
			return nil, fmt.Errorf("failed to make/verify bucket %s: %w", bucketName, errors.Join(err, existsErr))
		}
		log.Info("Bucket already exists", zap.String("bucket", bucketName))
	} else {
		log.Info("Bucket created", zap.String("bucket", bucketName))
	}

	if publicURL == "" {
		publicURL = fmt.Sprintf("%s/%s", client.EndpointURL().String(), bucketName)
	}
	return &S3Storage{
		client:    client,
		bucket:    bucketName,
		publicURL: strings.TrimRight(publicURL, "/"),
		breaker:   newBreaker("s3-"+bucketName, 30*time.Second, log),
		logger:    log.Named("S3Storage"),
	}, nil
}

// ObjectKey builds the "<uuid>-<name>" key for an uploaded file.
func ObjectKey(id uuid.UUID, name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "file"
	}
	return fmt.Sprintf("%s-%s", id.String(), strings.ReplaceAll(base, " ", "_"))
}

// Store uploads data and returns its key. Uploads fail fast while the breaker
// is open.
func (s *S3Storage) Store(ctx context.Context, data []byte, contentType, name string) (string, error) {
	key := ObjectKey(uuid.New(), name)
	res, err := s.breaker.Execute(func() (interface{}, error) {
		return s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
			ContentType:  contentType,
			UserMetadata: map[string]string{"original-filename": name},
		})
	})
	if err != nil {
		s.logger.Error("PutObject failed", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("failed to upload object %s to bucket %s: %w", key, s.bucket, err)
	}
	info := res.(minio.UploadInfo)
	s.logger.Info("Media stored", zap.String("key", info.Key), zap.Int64("size", info.Size))
	return key, nil
}

// Delete removes keys in one batch and reports every object that failed.
func (s *S3Storage) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	objects := make(chan minio.ObjectInfo, len(keys))
	for _, k := range keys {
		objects <- minio.ObjectInfo{Key: k}
	}
	close(objects)

	_, err := s.breaker.Execute(func() (interface{}, error) {
		var errs []error
		for rErr := range s.client.RemoveObjects(ctx, s.bucket, objects, minio.RemoveObjectsOptions{}) {
			s.logger.Warn("RemoveObject failed", zap.String("key", rErr.ObjectName), zap.Error(rErr.Err))
			errs = append(errs, fmt.Errorf("remove %s: %w", rErr.ObjectName, rErr.Err))
		}
		return nil, errors.Join(errs...)
	})
	return err
}

// URL returns the public address of key.
func (s *S3Storage) URL(key string) string {
	return s.publicURL + "/" + key
}
