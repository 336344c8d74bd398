package storage

import (
	"context"
	"path/filepath"
	"strings"
	"time"
)

const stampLayout = "20060102_150405"

// ArtifactStore receives a copy of every finished artifact
type ArtifactStore interface {
	// Save copies the file at path and returns where the copy was written
	Save(ctx context.Context, path string) (string, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// StampedName returns the base name of path with a timestamp before its extension
func StampedName(path string, now time.Time) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "_" + now.Format(stampLayout) + ext
}
