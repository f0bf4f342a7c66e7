package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
)

// Local keeps documents under a directory and addresses them with file:// URLs.
type Local struct {
	root   string
	logger *slog.Logger
}

func NewLocal(dir string, logger *slog.Logger) (*Local, error) {
	if logger == nil {
		logger = slog.Default()
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(root, KeyPrefix), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Local{root: root, logger: logger.With("system", "storage", "backend", "local")}, nil
}

func (l *Local) Store(_ context.Context, data []byte, filename string) (string, error) {
	key := NewKey(filename)
	p := l.path(key)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob %s: %w", key, err)
	}
	l.logger.Debug("storage.store.ok", "key", key, "bytes", len(data))
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String(), nil
}

func (l *Local) Fetch(_ context.Context, rawURL string) ([]byte, error) {
	key, err := KeyFromURL(rawURL)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}
	return data, nil
}

func (l *Local) Delete(_ context.Context, rawURL string) error {
	key, err := KeyFromURL(rawURL)
	if err != nil {
		return err
	}
	err = os.Remove(l.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	return nil
}

func (l *Local) path(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(key))
}
