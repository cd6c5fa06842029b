package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
)

type LocalStore struct {
	dir string
	log *logger.Logger
}

func NewLocalStore(log *logger.Logger, dir string) (*LocalStore, error) {
	if dir == "" {
		dir = "uploads"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	log.Info("local object storage selected", "dir", abs)
	return &LocalStore{dir: abs, log: log.With("service", "LocalStore")}, nil
}

func (s *LocalStore) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return key, nil
}

// Fetch returns the stored file in place; there is nothing to clean up.
func (s *LocalStore) Fetch(ctx context.Context, ref string) (string, func(), error) {
	key, err := CleanKey(ref)
	if err != nil {
		return "", noop, err
	}
	p := filepath.Join(s.dir, filepath.FromSlash(key))
	if _, err := os.Stat(p); err != nil {
		return "", noop, err
	}
	return p, noop, nil
}

func (s *LocalStore) Delete(ctx context.Context, ref string) error {
	key, err := CleanKey(ref)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.dir, filepath.FromSlash(key)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
