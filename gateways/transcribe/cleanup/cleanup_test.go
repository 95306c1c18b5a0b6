package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func createTempFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	return path
}

func TestDrain_RemovesAllRegisteredFiles(t *testing.T) {
	dir := t.TempDir()
	tracker := NewTracker()

	a := createTempFile(t, dir, "upload.mp4")
	b := createTempFile(t, dir, "upload.mp4.mp3")
	tracker.Add(a)
	tracker.Add(b)

	if tracker.Len() != 2 {
		t.Fatalf("expected 2 tracked paths, got %d", tracker.Len())
	}

	tracker.Drain(context.Background())

	for _, path := range []string{a, b} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("expected %s to be removed, stat err: %v", path, err)
		}
	}
	if tracker.Len() != 0 {
		t.Errorf("expected tracker to be empty after drain, got %d", tracker.Len())
	}
}

func TestDrain_ToleratesMissingFiles(t *testing.T) {
	tracker := NewTracker()
	tracker.Add(filepath.Join(t.TempDir(), "never-created.mp3"))

	// Must not panic or surface an error.
	tracker.Drain(context.Background())
}

func TestAdd_DeduplicatesPaths(t *testing.T) {
	dir := t.TempDir()
	tracker := NewTracker()

	path := createTempFile(t, dir, "once.mp3")
	tracker.Add(path)
	tracker.Add(path)

	if tracker.Len() != 1 {
		t.Errorf("expected duplicate Add to be ignored, got %d paths", tracker.Len())
	}
}

func TestDrain_SecondCallIsNoOp(t *testing.T) {
	dir := t.TempDir()
	tracker := NewTracker()
	tracker.Add(createTempFile(t, dir, "once.mp3"))

	tracker.Drain(context.Background())
	tracker.Drain(context.Background())

	if tracker.Len() != 0 {
		t.Errorf("expected empty tracker, got %d", tracker.Len())
	}
}

func TestTracker_RegisteredAfterPartialWork(t *testing.T) {
	dir := t.TempDir()
	tracker := NewTracker()

	// A downloaded file whose later pipeline step failed must still be
	// covered by the tracker.
	path := createTempFile(t, dir, "fetched.mp3")
	tracker.Add(path)

	tracker.Drain(context.Background())

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected partially-processed file to be removed")
	}
}
