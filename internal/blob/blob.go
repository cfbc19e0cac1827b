// Package blob stores uploaded attachment files outside the record store.
// Records only keep attachment metadata; the bytes live here under the
// attachment's stored name.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/civicwater/waterboard/internal/config"
)

var (
	// ErrNotFound is returned when a key has no blob.
	ErrNotFound = errors.New("blob not found")
	// ErrExists is returned by Put when the key is already taken.
	ErrExists = errors.New("blob already exists")
	// ErrInvalidKey is returned for empty, absolute or traversing keys.
	ErrInvalidKey = errors.New("invalid blob key")
)

// Driver names a storage backend.
type Driver string

const (
	DriverFS     Driver = config.BlobFS
	DriverS3     Driver = config.BlobS3
	DriverMemory Driver = config.BlobMemory
)

// Info describes a stored blob.
type Info struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// PutOptions carries optional attributes for Put.
type PutOptions struct {
	ContentType string
}

// Store is the minimal blob storage surface used by the intake handlers.
type Store interface {
	// Put writes a new blob. Existing keys are never overwritten.
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	// Get opens a blob for reading. The caller closes the reader.
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	// Delete removes a blob; it reports whether one existed.
	Delete(ctx context.Context, key string) (bool, error)
	Driver() Driver
}

// Open builds the Store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverFS, "":
		return NewFS(cfg.Root)
	case DriverMemory:
		return NewMemory(), nil
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			PathStyle:       cfg.S3PathStyle,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	}
	return nil, fmt.Errorf("unsupported blob driver %q", cfg.Driver)
}
