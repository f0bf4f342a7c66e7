// Package storage keeps uploaded invoice documents in blob storage, either on the local
// filesystem or in Azure Blob Storage.
package storage

import (
	"context"
	"errors"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-tracker/constants"
)

// KeyPrefix is the folder every document key lives under.
const KeyPrefix = "invoices/"

var (
	// ErrNotFound indicates the requested blob does not exist.
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidKey indicates a URL or key that does not address a stored invoice document.
	ErrInvalidKey = errors.New("invalid storage key")
)

// Storage stores documents and addresses them by URL.
type Storage interface {
	// Store writes data under a fresh key derived from filename and returns its URL.
	Store(ctx context.Context, data []byte, filename string) (string, error)
	// Fetch returns the bytes stored at url.
	Fetch(ctx context.Context, url string) ([]byte, error)
	// Delete removes the blob at url. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, url string) error
}

// NewKey returns "invoices/<uuid>.<ext>" with the extension taken from filename.
func NewKey(filename string) string {
	key := KeyPrefix + uuid.NewString()
	if ext := constants.NormalizeExt(path.Ext(filename)); ext != "" {
		key += "." + ext
	}
	return key
}

// KeyFromURL recovers the storage key ("invoices/<id>.<ext>") from a document URL.
func KeyFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", ErrInvalidKey
	}
	p := u.Path
	if strings.HasPrefix(p, KeyPrefix) {
		p = "/" + p
	}
	i := strings.LastIndex(p, "/"+KeyPrefix)
	if i < 0 {
		return "", ErrInvalidKey
	}
	key := p[i+1:]
	if err := validateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

func validateKey(key string) error {
	name := strings.TrimPrefix(key, KeyPrefix)
	if name == "" || name == key || strings.Contains(key, "..") || strings.Contains(name, "/") {
		return ErrInvalidKey
	}
	return nil
}
