package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
)

var (
	errBucketRequired = errors.New("storage: bucket name is required")
	errObjectRequired = errors.New("storage: object name is required")
	errEmptyPayload   = errors.New("storage: payload is empty")
)

// Uploader writes blobs to a Cloud Storage bucket and returns their public URL.
type Uploader struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

// UploaderOption customises uploader behaviour.
type UploaderOption func(*Uploader)

// WithPublicBaseURL overrides the base URL used to compose returned object URLs.
func WithPublicBaseURL(base string) UploaderOption {
	return func(u *Uploader) {
		if trimmed := strings.TrimRight(strings.TrimSpace(base), "/"); trimmed != "" {
			u.baseURL = trimmed
		}
	}
}

// NewUploader constructs an Uploader bound to a bucket.
func NewUploader(client *storage.Client, bucket string, opts ...UploaderOption) (*Uploader, error) {
	if client == nil {
		return nil, errors.New("storage: client is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errBucketRequired
	}

	uploader := &Uploader{
		client:  client,
		bucket:  bucket,
		baseURL: "https://storage.googleapis.com",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(uploader)
		}
	}
	return uploader, nil
}

// Put writes the payload under the given object path and returns the public URL.
// The write is atomic from the reader's perspective: either the full object becomes
// visible or nothing does.
func (u *Uploader) Put(ctx context.Context, object string, data []byte, contentType string) (string, error) {
	if u == nil || u.client == nil {
		return "", errors.New("storage: uploader is not initialised")
	}
	object = strings.TrimLeft(strings.TrimSpace(object), "/")
	if object == "" {
		return "", errObjectRequired
	}
	if len(data) == 0 {
		return "", errEmptyPayload
	}

	writer := u.client.Bucket(u.bucket).Object(object).NewWriter(ctx)
	if contentType = strings.TrimSpace(contentType); contentType != "" {
		writer.ContentType = contentType
	}

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("storage: write object %s: %w", object, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("storage: finalise object %s: %w", object, err)
	}

	return u.ObjectURL(object), nil
}

// Delete removes the object; a missing object is not an error.
func (u *Uploader) Delete(ctx context.Context, object string) error {
	if u == nil || u.client == nil {
		return errors.New("storage: uploader is not initialised")
	}
	object = strings.TrimLeft(strings.TrimSpace(object), "/")
	if object == "" {
		return errObjectRequired
	}

	err := u.client.Bucket(u.bucket).Object(object).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("storage: delete object %s: %w", object, err)
	}
	return nil
}

// ObjectURL composes the public URL for an object in the configured bucket.
func (u *Uploader) ObjectURL(object string) string {
	return fmt.Sprintf("%s/%s/%s", u.baseURL, u.bucket, strings.TrimLeft(object, "/"))
}

// ObjectFromURL maps a public URL back onto the object path within the configured
// bucket. URLs pointing elsewhere report false.
func (u *Uploader) ObjectFromURL(url string) (string, bool) {
	if u == nil {
		return "", false
	}
	prefix := u.baseURL + "/" + u.bucket + "/"
	object, found := strings.CutPrefix(strings.TrimSpace(url), prefix)
	if !found || object == "" {
		return "", false
	}
	return object, true
}
