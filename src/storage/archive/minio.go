package archive

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"paperchat/src/core/rag"
	"paperchat/src/log"
)

// Minio archives uploads into a bucket on a MinIO or S3-compatible server.
type Minio struct {
	client *minio.Client
	bucket string
}

var _ rag.Archive = (*Minio)(nil)

// NewMinio connects to the object store at endpoint and archives into
// bucket. The bucket is created on first use.
func NewMinio(endpoint, accessKeyID, secretAccessKey, bucket string, useSSL bool) (*Minio, error) {
	if endpoint == "" {
		return nil, &rag.ConfigurationError{Field: "minio.endpoint", Reason: "must not be empty"}
	}
	if bucket == "" {
		return nil, &rag.ConfigurationError{Field: "minio.bucket", Reason: "must not be empty"}
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &Minio{client: client, bucket: bucket}, nil
}

// Store uploads r under the base name of filename and returns the object
// location as minio://bucket/name.
func (m *Minio) Store(ctx context.Context, filename string, r io.Reader, size int64) (string, error) {
	if err := m.ensureBucket(ctx); err != nil {
		return "", err
	}

	name := filepath.Base(filename)
	_, err := m.client.PutObject(ctx, m.bucket, name, r, size, minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive %s: %w", name, err)
	}
	return fmt.Sprintf("minio://%s/%s", m.bucket, name), nil
}

// List returns the archived documents, newest first.
func (m *Minio) List(ctx context.Context) ([]rag.ArchivedDocument, error) {
	var docs []rag.ArchivedDocument
	for object := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list bucket %s: %w", m.bucket, object.Err)
		}
		docs = append(docs, rag.ArchivedDocument{
			Name:    object.Key,
			Size:    object.Size,
			ModTime: object.LastModified,
		})
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].ModTime.After(docs[j].ModTime)
	})
	return docs, nil
}

// Remove deletes the archived copy of filename. Removing an object that is
// not archived is not an error.
func (m *Minio) Remove(ctx context.Context, filename string) error {
	name := filepath.Base(filename)
	err := m.client.RemoveObject(ctx, m.bucket, name, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to remove archive copy %s: %w", name, err)
	}
	return nil
}

// Health verifies the object store answers bucket lookups.
func (m *Minio) Health(ctx context.Context) error {
	if _, err := m.client.BucketExists(ctx, m.bucket); err != nil {
		return fmt.Errorf("failed to reach object store: %w", err)
	}
	return nil
}

func (m *Minio) ensureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", m.bucket, err)
	}
	log.Info("created archive bucket", "bucket", m.bucket)
	return nil
}
