package blobstore

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob" // registers mem://
)

// OpenBucket opens location as a bucket. A value with a scheme ("file://",
// "mem://") is opened by URL; anything else is a local directory, created if
// missing.
func OpenBucket(ctx context.Context, location string) (*blob.Bucket, error) {
	if strings.Contains(location, "://") {
		b, err := blob.OpenBucket(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("open bucket %s: %w", location, err)
		}
		return b, nil
	}
	if err := os.MkdirAll(location, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", location, err)
	}
	b, err := fileblob.OpenBucket(location, nil)
	if err != nil {
		return nil, fmt.Errorf("open directory %s: %w", location, err)
	}
	return b, nil
}
