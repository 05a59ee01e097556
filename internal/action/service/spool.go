// Package service provides the staging area used to move export archives between servers.
package service

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"gocloud.dev/blob"

	// Register the bucket drivers accepted by SPOOL_URL
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

// DefaultSpoolURL keeps archives in memory.
const DefaultSpoolURL = "mem://"

// Spool stages export archives in a blob bucket. Objects are keyed by a random id so concurrent
// handlers never collide, although the dispatcher only ever runs one at a time.
type Spool struct {
	bucket *blob.Bucket
}

// OpenSpool opens the bucket behind url. Supports mem:// and file:///path (the directory must
// exist). An empty url falls back to DefaultSpoolURL.
func OpenSpool(ctx context.Context, url string) (*Spool, error) {
	if url == "" {
		url = DefaultSpoolURL
	}
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open spool bucket: %w", err)
	}
	return NewSpool(bucket), nil
}

// NewSpool wraps an already opened bucket.
func NewSpool(bucket *blob.Bucket) *Spool {
	return &Spool{bucket: bucket}
}

// Put copies content into a new object and returns its key.
func (s *Spool) Put(ctx context.Context, content io.Reader) (string, error) {
	key := uuid.NewString() + ".zip"

	// Cancelling the writer context before Close discards a partial object.
	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	writer, err := s.bucket.NewWriter(writeCtx, key, &blob.WriterOptions{ContentType: "application/zip"})
	if err != nil {
		return "", fmt.Errorf("failed to create spool object: %w", err)
	}
	if _, err := io.Copy(writer, content); err != nil {
		cancel()
		_ = writer.Close()
		return "", fmt.Errorf("failed to write spool object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to commit spool object: %w", err)
	}
	return key, nil
}

// Open returns a reader for a staged object. The caller closes it.
func (s *Spool) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open spool object: %w", err)
	}
	return reader, nil
}

// Remove deletes a staged object.
func (s *Spool) Remove(ctx context.Context, key string) error {
	if err := s.bucket.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to remove spool object: %w", err)
	}
	return nil
}

// Close releases the bucket.
func (s *Spool) Close() error {
	return s.bucket.Close()
}
