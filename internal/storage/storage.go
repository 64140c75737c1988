// Package storage writes submission documents to an object store and
// returns the public URL they can be fetched from.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/config"
)

// ObjectStore stores data under key and returns its public URL. Delete of a
// missing key is not an error.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// New builds the object store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	switch cfg.Driver {
	case config.StorageDriverSpaces, config.StorageDriverS3:
		return NewS3(ctx, cfg)
	case config.StorageDriverFS:
		return NewFS(cfg.LocalDir, cfg.PublicBaseURL)
	}
	return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
}

// ObjectKey derives a unique key for an uploaded file:
// <prefix>/<uuid>-<basename>.
func ObjectKey(prefix, filename string) string {
	name := sanitizeName(filename)
	key := uuid.NewString() + "-" + name
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		key = prefix + "/" + key
	}
	return key
}

// sanitizeName keeps the base name of filename and replaces characters that
// are awkward in URLs.
func sanitizeName(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
