package blob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// GCS implements Store on Google Cloud Storage using application default
// credentials.
type GCS struct {
	client *storage.Client
	bucket string
}

func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		bucket = DefaultBucket
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

func (g *GCS) Upload(ctx context.Context, object string, data []byte, contentType string) error {
	w := g.client.Bucket(g.bucket).Object(object).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("upload gs://%s/%s: %w", g.bucket, object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("upload gs://%s/%s: %w", g.bucket, object, err)
	}
	return nil
}

func (g *GCS) SignedURL(object string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultReelURLTTL
	}
	url, err := g.client.Bucket(g.bucket).SignedURL(object, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().UTC().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("sign url for gs://%s/%s: %w", g.bucket, object, err)
	}
	return url, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}
