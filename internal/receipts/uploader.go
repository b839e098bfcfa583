package receipts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrTooLarge           = errors.New("receipt exceeds size limit")
	ErrEmpty              = errors.New("receipt is empty")
	ErrUnsupportedType    = errors.New("unsupported receipt content type")
	ErrUploadsUnavailable = errors.New("receipt uploads are not configured")
)

var allowedTypes = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"application/pdf": ".pdf",
}

// Uploader stores a deposit receipt and returns an opaque reference to it.
type Uploader interface {
	Upload(ctx context.Context, accountID uuid.UUID, contentType string, r io.Reader) (string, error)
}

type writerFunc func(ctx context.Context, object, contentType string) io.WriteCloser

// GCSUploader streams receipts into a Cloud Storage bucket. References have
// the form gs://bucket/receipts/<account>/<id><ext>.
type GCSUploader struct {
	bucket    string
	maxBytes  int64
	timeout   time.Duration
	newWriter writerFunc
}

// NewGCSUploader uploads with an existing storage client. The client is owned
// by the caller.
func NewGCSUploader(client *storage.Client, bucket string, maxBytes int64) *GCSUploader {
	return newUploader(bucket, maxBytes, func(ctx context.Context, object, contentType string) io.WriteCloser {
		w := client.Bucket(bucket).Object(object).NewWriter(ctx)
		w.ContentType = contentType
		return w
	})
}

func newUploader(bucket string, maxBytes int64, newWriter writerFunc) *GCSUploader {
	return &GCSUploader{
		bucket:    bucket,
		maxBytes:  maxBytes,
		timeout:   2 * time.Minute,
		newWriter: newWriter,
	}
}

// Upload copies at most maxBytes from r. Oversized or empty bodies abort the
// write so no object is created.
func (u *GCSUploader) Upload(ctx context.Context, accountID uuid.UUID, contentType string, r io.Reader) (string, error) {
	contentType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	ext, ok := allowedTypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}

	object := path.Join("receipts", accountID.String(), uuid.NewString()+ext)

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	w := u.newWriter(ctx, object, contentType)
	n, err := io.Copy(w, io.LimitReader(r, u.maxBytes+1))
	if err != nil {
		cancel()
		_ = w.Close()
		return "", fmt.Errorf("copy receipt to storage writer: %w", err)
	}
	if n > u.maxBytes || n == 0 {
		// Cancelling before Close discards the partial object.
		cancel()
		_ = w.Close()
		if n == 0 {
			return "", ErrEmpty
		}
		return "", fmt.Errorf("%w: max %d bytes", ErrTooLarge, u.maxBytes)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize receipt upload: %w", err)
	}

	ref := fmt.Sprintf("gs://%s/%s", u.bucket, object)
	zap.L().Info("receipt uploaded",
		zap.String("account_id", accountID.String()),
		zap.String("receipt_url", ref),
		zap.Int64("bytes", n))
	return ref, nil
}

// Disabled rejects every upload. It is used when no bucket is configured.
type Disabled struct{}

func (Disabled) Upload(context.Context, uuid.UUID, string, io.Reader) (string, error) {
	return "", ErrUploadsUnavailable
}
