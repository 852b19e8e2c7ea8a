package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/apperrors"
	s3client "github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/client/s3"
)

// Repo holds model artifacts and export payloads in object storage.
type Repo struct {
	StorageS3 *s3client.StorageS3
}

func NewRepo(storageS3 *s3client.StorageS3) *Repo {
	return &Repo{StorageS3: storageS3}
}

// FetchArtifact reads an object fully into memory. A missing key returns
// ErrArtifactNotFound, which is a valid startup condition for model
// artifacts.
func (s *Repo) FetchArtifact(ctx context.Context, key string) ([]byte, error) {
	if s.StorageS3 == nil || s.StorageS3.Client == nil {
		return nil, fmt.Errorf("s3 client not initialized")
	}

	obj, err := s.StorageS3.Client.GetObject(ctx, s.StorageS3.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("s3 get object %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrArtifactNotFound, key)
		}
		return nil, fmt.Errorf("s3 read object %s: %w", key, err)
	}
	return data, nil
}

// UploadCSV stores a rendered export under key.
func (s *Repo) UploadCSV(ctx context.Context, key string, data []byte) error {
	if s.StorageS3 == nil || s.StorageS3.Client == nil {
		return fmt.Errorf("s3 client not initialized")
	}

	_, err := s.StorageS3.Client.PutObject(
		ctx,
		s.StorageS3.Bucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{
			ContentType: "text/csv",
		},
	)
	if err != nil {
		return fmt.Errorf("s3 put object %s: %w", key, err)
	}
	return nil
}

// PresignedURL returns a temporary download link for a stored export.
func (s *Repo) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if s.StorageS3 == nil || s.StorageS3.Client == nil {
		return "", fmt.Errorf("s3 client not initialized")
	}

	presignedURL, err := s.StorageS3.Client.PresignedGetObject(ctx, s.StorageS3.Bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presigned get object %s: %w", key, err)
	}
	return presignedURL.String(), nil
}
