package tokenfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestOpenReadsTrimmedToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("  secret-1\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	w, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer w.Close()
	if got := w.Token(); got != "secret-1" {
		t.Fatalf("Token = %q", got)
	}
	if w.Path() != path {
		t.Fatalf("Path = %q, want %q", w.Path(), path)
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "absent"), nil); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestReloadOnRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token")
	if err := os.WriteFile(path, []byte("old"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	w, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer w.Close()

	tmp := filepath.Join(dir, "token.tmp")
	if err := os.WriteFile(tmp, []byte("new\n"), 0o600); err != nil {
		t.Fatalf("write tmp: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for w.Token() != "new" {
		if time.Now().After(deadline) {
			t.Fatalf("token not reloaded, still %q", w.Token())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestReloadKeepsTokenOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("keep"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	w, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := w.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if got := w.Token(); got != "keep" {
		t.Fatalf("Token = %q, want keep", got)
	}
}
