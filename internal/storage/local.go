package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/sirupsen/logrus"
)

// LocalStore copies artifacts into a directory, by default the user's desktop
type LocalStore struct {
	dir string
	now func() time.Time
}

// Ensure LocalStore implements ArtifactStore
var _ ArtifactStore = (*LocalStore)(nil)

// NewLocalStore creates a store rooted at dir. An empty dir means the XDG desktop directory.
func NewLocalStore(dir string) *LocalStore {
	if dir == "" {
		dir = xdg.UserDirs.Desktop
	}
	return &LocalStore{dir: dir, now: time.Now}
}

func (s *LocalStore) Dir() string {
	return s.dir
}

// Save copies path into the store as {stem}_{yyyymmdd_hhmmss}{ext}
func (s *LocalStore) Save(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", s.dir, err)
	}

	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open artifact %s: %w", path, err)
	}
	defer src.Close()

	dest := filepath.Join(s.dir, StampedName(path, s.now()))
	dst, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create copy %s: %w", dest, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("failed to copy artifact to %s: %w", dest, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("failed to close copy %s: %w", dest, err)
	}

	logrus.Infof("Copied %s to %s", filepath.Base(path), dest)
	return dest, nil
}

// List returns the names of stored files starting with prefix, sorted
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", s.dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
