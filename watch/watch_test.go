package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()

	config := Config{
		Debounce:       100 * time.Millisecond,
		FileExtensions: []string{".md", "yaml"},
		ExcludeDirs:    []string{".git"},
	}

	watcher, err := New(config, tmpDir, nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer watcher.Stop()

	// Extensions are normalized to a leading dot.
	if !watcher.extensions[".md"] {
		t.Error("expected .md extension to be watched")
	}
	if !watcher.extensions[".yaml"] {
		t.Error("expected .yaml extension to be watched")
	}

	if !watcher.excludes[".git"] {
		t.Error("expected .git to be excluded")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Debounce != 500*time.Millisecond {
		t.Errorf("unexpected default debounce: %v", config.Debounce)
	}
	if len(config.FileExtensions) != 4 {
		t.Errorf("expected 4 default extensions, got %d", len(config.FileExtensions))
	}
	if len(config.ExcludeDirs) != 3 {
		t.Errorf("expected 3 default excludes, got %d", len(config.ExcludeDirs))
	}
}

func TestWatcher_FileCreation(t *testing.T) {
	tmpDir := t.TempDir()

	config := Config{
		Debounce:       50 * time.Millisecond,
		FileExtensions: []string{".md"},
		ExcludeDirs:    []string{".git"},
	}

	watcher, err := New(config, tmpDir, testLogger())
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer watcher.Stop()

	// Give watcher time to set up
	time.Sleep(100 * time.Millisecond)

	testFile := filepath.Join(tmpDir, "notes.md")
	if err := os.WriteFile(testFile, []byte("The coupling is 0.65.\n"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	select {
	case event := <-watcher.Events():
		if event.Operation != OpCreate {
			t.Errorf("expected create operation, got %s", event.Operation)
		}
		if event.Path != "notes.md" {
			t.Errorf("expected path notes.md, got %s", event.Path)
		}
	case <-time.After(1 * time.Second):
		t.Error("timeout waiting for create event")
	}
}

func TestWatcher_FileModification(t *testing.T) {
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "parameters.yaml")
	if err := os.WriteFile(testFile, []byte("parameters: []\n"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	config := Config{
		Debounce:       50 * time.Millisecond,
		FileExtensions: []string{".yaml"},
		ExcludeDirs:    []string{".git"},
	}

	watcher, err := New(config, tmpDir, testLogger())
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer watcher.Stop()

	// Seed a hash so the write counts as a modification, not a creation.
	watcher.setHash("parameters.yaml", "stale-hash")

	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(testFile, []byte("parameters:\n  - id: alpha\n"), 0644); err != nil {
		t.Fatalf("failed to modify test file: %v", err)
	}

	select {
	case event := <-watcher.Events():
		if event.Operation != OpModify {
			t.Errorf("expected modify operation, got %s", event.Operation)
		}
		if event.Path != "parameters.yaml" {
			t.Errorf("expected path parameters.yaml, got %s", event.Path)
		}
	case <-time.After(1 * time.Second):
		t.Error("timeout waiting for modify event")
	}
}

func TestWatcher_FileDeletion(t *testing.T) {
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "old.md")
	if err := os.WriteFile(testFile, []byte("obsolete\n"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	config := Config{
		Debounce:       50 * time.Millisecond,
		FileExtensions: []string{".md"},
		ExcludeDirs:    []string{".git"},
	}

	watcher, err := New(config, tmpDir, testLogger())
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer watcher.Stop()

	watcher.setHash("old.md", "some-hash")

	time.Sleep(100 * time.Millisecond)

	if err := os.Remove(testFile); err != nil {
		t.Fatalf("failed to remove test file: %v", err)
	}

	select {
	case event := <-watcher.Events():
		if event.Operation != OpDelete {
			t.Errorf("expected delete operation, got %s", event.Operation)
		}
		if event.Path != "old.md" {
			t.Errorf("expected path old.md, got %s", event.Path)
		}
	case <-time.After(1 * time.Second):
		t.Error("timeout waiting for delete event")
	}
}

func TestWatcher_IgnoresOtherExtensions(t *testing.T) {
	tmpDir := t.TempDir()

	config := Config{
		Debounce:       50 * time.Millisecond,
		FileExtensions: []string{".md"},
		ExcludeDirs:    []string{".git"},
	}

	watcher, err := New(config, tmpDir, testLogger())
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(tmpDir, "scratch.tmp"), []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	select {
	case event := <-watcher.Events():
		t.Errorf("unexpected event for %s", event.Path)
	case <-time.After(300 * time.Millisecond):
		// No event, as intended.
	}
}

func TestWatcher_SuppressesUnchangedRewrites(t *testing.T) {
	tmpDir := t.TempDir()

	content := []byte("stable content\n")
	testFile := filepath.Join(tmpDir, "stable.md")
	if err := os.WriteFile(testFile, content, 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	config := Config{
		Debounce:       50 * time.Millisecond,
		FileExtensions: []string{".md"},
		ExcludeDirs:    []string{".git"},
	}

	watcher, err := New(config, tmpDir, testLogger())
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer watcher.Stop()

	watcher.setHash("stable.md", contentHash(content))

	time.Sleep(100 * time.Millisecond)

	// Rewrite the identical bytes, as editors do on save.
	if err := os.WriteFile(testFile, content, 0644); err != nil {
		t.Fatalf("failed to rewrite test file: %v", err)
	}

	select {
	case event := <-watcher.Events():
		t.Errorf("unexpected event for unchanged content: %s %s", event.Operation, event.Path)
	case <-time.After(300 * time.Millisecond):
		// Suppressed, as intended.
	}
}
