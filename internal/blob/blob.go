// Package blob defines the storage abstraction behind uploaded attachments
// (voyage, bunker, task files and vessel, fleet, member, user images).
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// Driver identifies a storage backend.
type Driver string

const (
	DriverFS     Driver = "fs"
	DriverS3     Driver = "s3"
	DriverMemory Driver = "memory"
)

var (
	ErrNotFound    = errors.New("blob not found")
	ErrExists      = errors.New("blob already exists")
	ErrInvalidKey  = errors.New("invalid blob key")
	ErrUnsupported = errors.New("blob: unsupported operation")
)

// PutOptions carries the content type and flat user metadata (original file name, uploader).
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Info describes a stored object.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store is a create-only object store keyed by slash separated paths.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	// PresignGet returns a time limited download URL, or ErrUnsupported.
	// A non-empty filename is served back as an inline Content-Disposition.
	PresignGet(ctx context.Context, key string, expiry time.Duration, filename string) (string, error)
	Driver() Driver
}

// CleanKey normalizes key and rejects empty, absolute and escaping paths.
func CleanKey(key string) (string, error) {
	k := strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if k == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if strings.HasPrefix(k, "/") {
		return "", fmt.Errorf("%w: absolute path %q", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(k, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: traversal in %q", ErrInvalidKey, key)
		}
	}
	return path.Clean(k), nil
}

// CloneMetadata copies m so callers cannot mutate stored metadata.
func CloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
