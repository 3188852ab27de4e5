package storage_test

import (
	"context"
	"path/filepath"
	"screenshot-service/internal/storage"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFileStorage(t *testing.T) {
	ctx := context.Background()
	directory := filepath.Join(t.TempDir(), "screenshots")

	s, err := storage.NewFileStorage(ctx, storage.FileConfig{Directory: directory})
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	path, err := s.Put(ctx, "20240102_030405_https___example.com.png", []byte("png"))
	if err != nil {
		t.Fatalf("failed to put: %v", err)
	}
	if diff := cmp.Diff(filepath.Join(directory, "20240102_030405_https___example.com.png"), path); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	data, err := s.Get(ctx, path)
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if diff := cmp.Diff([]byte("png"), data); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	if err := s.Delete(ctx, path); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if err := s.Delete(ctx, path); err != nil {
		t.Errorf("expected deleting a missing file to succeed, got %v", err)
	}
	if _, err := s.Get(ctx, path); err == nil {
		t.Errorf("expected error reading deleted file")
	}
}
