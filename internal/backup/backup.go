// Package backup writes dated JSON exports of an account's full snapshot to a
// GCS bucket, and reads them back for restore.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/grana-app/grana/internal/remote"
)

// ObjectName returns the export path for an account at a point in time:
// backups/<accountID>/<RFC3339 timestamp>.json.
func ObjectName(accountID string, at time.Time) string {
	return fmt.Sprintf("backups/%s/%s.json", accountID, at.UTC().Format("2006-01-02T15-04-05Z"))
}

// Export marshals the snapshot and uploads it to the bucket. It assumes
// Application Default Credentials are configured. Returns the gs:// URI of
// the written object.
func Export(ctx context.Context, bucketName, accountID string, snap *remote.Snapshot) (string, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("Export: marshal snapshot: %w", err)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("Export: create storage client: %w", err)
	}
	defer client.Close()

	objectName := ObjectName(accountID, time.Now())

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Export: writing object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Export: finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", bucketName, objectName), nil
}

// Fetch downloads an export from the given gs:// URI and unmarshals it.
func Fetch(ctx context.Context, gcsURI string) (*remote.Snapshot, error) {
	bucketName, objectPath, err := splitURI(gcsURI)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: creating storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}

	var snap remote.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("Fetch: unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// splitURI breaks "gs://bucket/path/to/obj.json" into bucket and object path.
func splitURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}
	trimmed := strings.TrimPrefix(gcsURI, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}
