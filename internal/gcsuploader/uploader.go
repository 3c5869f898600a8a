// Package gcsuploader archives uploaded source files in Google Cloud Storage.
package gcsuploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/dvloznov/finance-reconciler/internal/domain"
)

const uploadTimeout = 2 * time.Minute

// Uploader writes uploads to a single bucket.
type Uploader struct {
	client *storage.Client
	bucket string
}

// NewUploader creates a storage client. An empty credentialsFile uses
// Application Default Credentials.
func NewUploader(ctx context.Context, bucket, credentialsFile string) (*Uploader, error) {
	if bucket == "" {
		return nil, fmt.Errorf("NewUploader: bucket is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewUploader: create storage client: %w", err)
	}
	return &Uploader{client: client, bucket: bucket}, nil
}

// Close closes the storage client.
func (u *Uploader) Close() error {
	return u.client.Close()
}

// Archive stores data and returns its gs:// URI.
func (u *Uploader) Archive(ctx context.Context, kind domain.DocumentKind, fileName string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	object := ObjectName(kind, uuid.New().String(), fileName)
	w := u.client.Bucket(u.bucket).Object(object).NewWriter(ctx)
	w.ContentType = http.DetectContentType(data)
	w.Metadata = map[string]string{
		"file_name": fileName,
		"file_type": string(kind),
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Archive: copy to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Archive: finalize upload: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", u.bucket, object), nil
}

// Fetch downloads the object at a gs:// URI.
func (u *Uploader) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	rc, err := u.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return data, nil
}
