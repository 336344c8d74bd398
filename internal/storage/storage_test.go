package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStampedName(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{"artifact", "/tmp/out/Reddit_AKS_in_ALL.xlsx", "Reddit_AKS_in_ALL_20240309_140507.xlsx"},
		{"bundle", "Reddit_outputs_20240301_000000.zip", "Reddit_outputs_20240301_000000_20240309_140507.zip"},
		{"no extension", "notes", "notes_20240309_140507"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StampedName(tt.path, now))
		})
	}
}

func TestLocalStore(t *testing.T) {
	src := filepath.Join(t.TempDir(), "Reddit_AKS_in_ALL.xlsx")
	require.NoError(t, os.WriteFile(src, []byte("workbook"), 0o644))

	dir := filepath.Join(t.TempDir(), "desktop")
	store := NewLocalStore(dir)
	store.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	dest, err := store.Save(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Reddit_AKS_in_ALL_20240102_030405.xlsx"), dest)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "workbook", string(data))

	names, err := store.List(context.Background(), "Reddit_")
	require.NoError(t, err)
	assert.Equal(t, []string{"Reddit_AKS_in_ALL_20240102_030405.xlsx"}, names)

	names, err = store.List(context.Background(), "Other")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalStoreMissingArtifact(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	_, err := store.Save(context.Background(), filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.Error(t, err)
}

func TestLocalStoreDefaultsToDesktop(t *testing.T) {
	store := NewLocalStore("")
	assert.NotEmpty(t, store.Dir())
}
