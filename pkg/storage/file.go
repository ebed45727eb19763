package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileStore keeps each document as one file at <dir>/<namespace>/<key>.
// Writes go through a temp file and rename so a crash never leaves a
// half-written document behind.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file storage dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Write(ctx context.Context, namespace, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	nsDir := filepath.Join(s.dir, sanitizeComponent(namespace))
	if err := os.MkdirAll(nsDir, 0o755); err != nil {
		return fmt.Errorf("create namespace dir: %w", err)
	}

	path := filepath.Join(nsDir, sanitizeComponent(key))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0o600); err != nil {
		return fmt.Errorf("write document %s/%s: %w", namespace, key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit document %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *FileStore) Read(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	path := filepath.Join(s.dir, sanitizeComponent(namespace), sanitizeComponent(key))
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read document %s/%s: %w", namespace, key, err)
	}
	return data, true, nil
}

func (s *FileStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	err := filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".tmp") || info.ModTime().Before(cutoff) {
			if rmErr := os.Remove(path); rmErr == nil {
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("sweep documents: %w", err)
	}
	return removed, nil
}

func (s *FileStore) Close() error { return nil }

// sanitizeComponent keeps namespace/key values from escaping the store dir.
func sanitizeComponent(in string) string {
	in = strings.ReplaceAll(in, string(os.PathSeparator), "_")
	in = strings.ReplaceAll(in, "..", "_")
	if in == "" {
		return "_"
	}
	return in
}
