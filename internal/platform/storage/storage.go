package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// Store keeps uploaded documents until a worker pulls them down for
// ingestion. Refs are opaque keys returned by Save.
type Store interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	// Fetch makes the object available as a local file. cleanup must be
	// called once the caller is done with the path.
	Fetch(ctx context.Context, ref string) (localPath string, cleanup func(), err error)
	Delete(ctx context.Context, ref string) error
}

var ErrInvalidKey = errors.New("invalid storage key")

// CleanKey normalises key to a relative slash path and rejects traversal.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+key), "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}

func noop() {}
