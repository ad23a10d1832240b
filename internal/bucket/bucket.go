// Package bucket persists small named blobs for the transform log and the
// task queues.
//
// A Bucket is a flat key/value namespace. Values are opaque bytes; callers
// usually store JSON through GetJSON and SetJSON. Drivers: an in-memory map,
// SQLite, Postgres, Badger and S3.
package bucket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Driver names a bucket backend.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverBadger   Driver = "badger"
	DriverS3       Driver = "s3"
)

// Bucket is a key/value store for persisted orbit state.
// Implementations must be safe for concurrent use.
type Bucket interface {
	// Get returns the value stored under key. ok is false when the key is
	// absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Driver reports the backend.
	Driver() Driver
}

// GetJSON decodes the JSON value stored under key into v.
func GetJSON(ctx context.Context, b Bucket, key string, v any) (bool, error) {
	data, ok, err := b.Get(ctx, key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v as JSON and stores it under key.
func SetJSON(ctx context.Context, b Bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return b.Set(ctx, key, data)
}

// Close releases the bucket's resources if it holds any.
func Close(b Bucket) error {
	if c, ok := b.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
