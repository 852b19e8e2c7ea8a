package s3

import (
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type StorageS3 struct {
	Endpoint string
	Bucket   string
	Client   *minio.Client
}

// NewS3Client builds a minio client for the bucket holding model artifacts
// and export payloads.
func NewS3Client(endpoint, accessKeyID, secretKey, bucket string, secure bool) (*StorageS3, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	return &StorageS3{
		Endpoint: endpoint,
		Bucket:   bucket,
		Client:   client,
	}, nil
}
