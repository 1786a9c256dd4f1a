package sink

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{name: "simple file", path: "server_gen.go"},
		{name: "nested", path: "api/client/client_gen.go"},
		{name: "dots in name", path: "a..b.go"},
		{name: "empty", path: "", wantErr: "empty"},
		{name: "absolute", path: "/etc/passwd", wantErr: "absolute paths not allowed"},
		{name: "windows drive", path: "C:/x.go", wantErr: "absolute paths not allowed"},
		{name: "traversal", path: "../x.go", wantErr: "path traversal not allowed"},
		{name: "inner traversal", path: "a/../../x.go", wantErr: "path traversal not allowed"},
		{name: "unclean", path: "a//b.go", wantErr: "not clean"},
		{name: "dot prefix", path: "./a.go", wantErr: "not clean"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestFilesystemSink_CreatesParents(t *testing.T) {
	root := t.TempDir()
	s := NewFilesystemSink(root)

	if err := s.WriteFile(context.Background(), "deep/nested/out.go", []byte("package out\n")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "deep", "nested", "out.go"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "package out\n" {
		t.Errorf("unexpected content %q", data)
	}

	entries, _ := os.ReadDir(filepath.Join(root, "deep", "nested"))
	if len(entries) != 1 {
		t.Errorf("expected no leftover temp files, got %d entries", len(entries))
	}
}

func TestFilesystemSink_SkipUnchanged(t *testing.T) {
	root := t.TempDir()
	s := NewFilesystemSink(root)
	ctx := context.Background()
	path := filepath.Join(root, "out.go")

	if err := s.WriteFile(ctx, "out.go", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}

	if err := s.WriteFile(ctx, "out.go", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	info, _ := os.Stat(path)
	if !info.ModTime().Equal(old) {
		t.Errorf("expected unchanged file to keep its modification time")
	}

	if err := s.WriteFile(ctx, "out.go", []byte("v2")); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "v2" {
		t.Errorf("expected v2, got %q", data)
	}
}

func TestFilesystemSink_Mode(t *testing.T) {
	root := t.TempDir()
	s := &FilesystemSink{Root: root, Mode: 0600}
	if err := s.WriteFile(context.Background(), "secret.go", []byte("x")); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Join(root, "secret.go"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected mode 0600, got %v", info.Mode().Perm())
	}
}

func TestFilesystemSink_Errors(t *testing.T) {
	root := t.TempDir()
	s := NewFilesystemSink(root)

	if err := s.WriteFile(context.Background(), "../escape.go", []byte("x")); err == nil {
		t.Error("expected traversal error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.WriteFile(ctx, "canceled.go", []byte("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "canceled.go")); !os.IsNotExist(err) {
		t.Error("expected no file after cancellation")
	}
}

func TestFilesystemSink_Concurrent(t *testing.T) {
	root := t.TempDir()
	s := NewFilesystemSink(root)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.WriteFile(context.Background(), "shared.go", []byte("same content")); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	data, _ := os.ReadFile(filepath.Join(root, "shared.go"))
	if string(data) != "same content" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestCheckSink(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	if err := os.WriteFile(filepath.Join(root, "same.go"), []byte("same"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "stale.go"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	s := &CheckSink{Root: root}
	if err := s.WriteFile(ctx, "same.go", []byte("same")); err != nil {
		t.Errorf("expected up to date file to pass, got %v", err)
	}
	if err := s.WriteFile(ctx, "stale.go", []byte("new")); !errors.Is(err, ErrOutOfDate) {
		t.Errorf("expected ErrOutOfDate, got %v", err)
	}
	if err := s.WriteFile(ctx, "missing.go", []byte("new")); !errors.Is(err, ErrOutOfDate) {
		t.Errorf("expected ErrOutOfDate for missing file, got %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(root, "stale.go"))
	if string(data) != "old" {
		t.Error("check sink must not write")
	}
}

func TestMemorySink(t *testing.T) {
	s := NewMemorySink()
	ctx := context.Background()
	content := []byte("package a\n")

	if err := s.WriteFile(ctx, "a/a.go", content); err != nil {
		t.Fatal(err)
	}
	content[0] = 'X'

	if got := string(s.Get("a/a.go")); got != "package a\n" {
		t.Errorf("expected stored copy, got %q", got)
	}
	if s.Get("missing.go") != nil {
		t.Error("expected nil for missing file")
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 file, got %d", s.Len())
	}
	if err := s.WriteFile(ctx, "/abs.go", content); err == nil {
		t.Error("expected invalid path error")
	}
}

func TestResolve_FilesystemRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix paths")
	}
	got, err := resolve("/", "work/api/bridge.go")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got != "/work/api/bridge.go" {
		t.Errorf("expected /work/api/bridge.go, got %s", got)
	}
}
