package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// FilesRoute is where the router serves the fs store's directory.
const FilesRoute = "/files"

// FS stores objects under a local directory. URLs point at FilesRoute, or at
// baseURL + FilesRoute when a base is configured.
type FS struct {
	dir     string
	baseURL string
}

func NewFS(dir, baseURL string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", dir, err)
	}
	log.Printf("Object storage: local directory %s", dir)
	return &FS{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir is the directory objects are written to.
func (s *FS) Dir() string {
	return s.dir
}

func (s *FS) Put(ctx context.Context, key string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, rel, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("create directory for %s: %w", key, err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	return joinURL(s.baseURL+FilesRoute, rel), nil
}

func (s *FS) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, _, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// path resolves key inside dir and returns the file path plus the cleaned
// slash-separated key. Keys cannot escape dir.
func (s *FS) path(key string) (string, string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	if clean == string(filepath.Separator) {
		return "", "", fmt.Errorf("invalid object key %q", key)
	}
	rel := strings.TrimPrefix(filepath.ToSlash(clean), "/")
	return filepath.Join(s.dir, clean), rel, nil
}
