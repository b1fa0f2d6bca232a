package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCS uploads snapshots to a Cloud Storage object.
type GCS struct {
	client *storage.Client
	bucket string
	object string
	owned  bool
}

// NewGCS uses Application Default Credentials unless credentialsJSON is set.
func NewGCS(ctx context.Context, bucket, object, credentialsJSON string) (*GCS, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("snapshot: SNAPSHOT_BUCKET is required")
	}
	var opts []option.ClientOption
	if strings.TrimSpace(credentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("snapshot: storage client: %w", err)
	}
	g, err := NewGCSWithClient(client, bucket, object)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	g.owned = true
	return g, nil
}

// NewGCSWithClient uploads through an existing client. The caller keeps
// ownership of client.
func NewGCSWithClient(client *storage.Client, bucket, object string) (*GCS, error) {
	if client == nil {
		return nil, errors.New("snapshot: storage client is nil")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("snapshot: SNAPSHOT_BUCKET is required")
	}
	if strings.TrimSpace(object) == "" {
		object = "latest.json"
	}
	return &GCS{client: client, bucket: bucket, object: object}, nil
}

func (g *GCS) Export(ctx context.Context, snap Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	w := g.client.Bucket(g.bucket).Object(g.object).NewWriter(ctx)
	w.ContentType = "application/json"
	w.CacheControl = "no-cache"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("snapshot: upload gs://%s/%s: %w", g.bucket, g.object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("snapshot: finalize gs://%s/%s: %w", g.bucket, g.object, err)
	}
	return nil
}

// Close closes the client if it was created by NewGCS.
func (g *GCS) Close() error {
	if g.owned {
		return g.client.Close()
	}
	return nil
}
