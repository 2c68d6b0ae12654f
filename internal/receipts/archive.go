// Package receipts archives uploaded receipt images in Google Cloud Storage.
package receipts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// Archive stores receipt images and fetches them back by gs:// URI.
type Archive interface {
	Save(ctx context.Context, userID, filename, contentType string, data []byte) (string, error)
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// GCSArchive writes under receipts/<userId>/<yyyy>/<mm>/<uuid><ext>.
type GCSArchive struct {
	client *storage.Client
	bucket string
	now    func() time.Time
}

// NewGCSArchive uses Application Default Credentials unless credentialsFile
// is set.
func NewGCSArchive(ctx context.Context, bucket, credentialsFile string) (*GCSArchive, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSArchive{client: client, bucket: bucket, now: time.Now}, nil
}

func (a *GCSArchive) Close() error {
	return a.client.Close()
}

// ObjectName builds the object path for a new receipt.
func ObjectName(userID, filename string, at time.Time) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	user := strings.NewReplacer("/", "_", "..", "_").Replace(userID)
	return fmt.Sprintf("receipts/%s/%s/%s%s", user, at.UTC().Format("2006/01"), uuid.NewString(), ext)
}

func (a *GCSArchive) Save(ctx context.Context, userID, filename, contentType string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	name := ObjectName(userID, filename, a.now())
	w := a.client.Bucket(a.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{"user_id": userID, "original_name": filename}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("copy receipt to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}
	return "gs://" + a.bucket + "/" + name, nil
}

// ParseURI splits gs://bucket/object.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

func (a *GCSArchive) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	rc, err := a.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read bytes: %w", err)
	}
	return data, nil
}
