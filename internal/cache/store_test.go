package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStoreDigest(t *testing.T) {
	store := newTestStore(t)
	writeCacheFile(t, store, "psr/log/abc.zip", "archive-bytes")

	digest, err := store.Digest(context.Background(), "psr/log/abc.zip")
	if err != nil {
		t.Fatalf("digest error: %v", err)
	}
	if digest != "0c982986710a026635603031674053ca851fc0e3ea760094a34f59b84f7f6da6" {
		t.Fatalf("unexpected digest: %s", digest)
	}
}

func TestStoreDigestMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Digest(context.Background(), "missing/file.zip")
	if err == nil || err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreIgnoresDirectories(t *testing.T) {
	store := newTestStore(t)
	filePath, err := store.Path("vendor/dir.zip")
	if err != nil {
		t.Fatalf("path error: %v", err)
	}
	if err := os.MkdirAll(filePath, 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}
	if _, err := store.Digest(context.Background(), "vendor/dir.zip"); err == nil || err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for directory, got %v", err)
	}
}

func TestStorePathRejectsEscape(t *testing.T) {
	store := newTestStore(t)
	got, err := store.Path("../../etc/passwd")
	if err != nil {
		t.Fatalf("path error: %v", err)
	}
	if !strings.HasPrefix(got, store.Root()+string(filepath.Separator)) {
		t.Fatalf("path must stay under root, got %s", got)
	}
	if _, err := store.Path(""); err == nil {
		t.Fatalf("empty cache file should be rejected")
	}
}

func TestStoreAdoptMovesFile(t *testing.T) {
	store := newTestStore(t)
	src := filepath.Join(t.TempDir(), "download.zip")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write error: %v", err)
	}

	dst, err := store.Adopt(context.Background(), src, "acme/pkg/sum.zip")
	if err != nil {
		t.Fatalf("adopt error: %v", err)
	}
	body, err := os.ReadFile(dst)
	if err != nil || string(body) != "payload" {
		t.Fatalf("adopted file mismatch: %q (%v)", body, err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("source should be removed after adopt, got %v", err)
	}
}

func TestStoreStageIsRemovedOnClose(t *testing.T) {
	store := newTestStore(t)
	staging, err := store.Stage()
	if err != nil {
		t.Fatalf("stage error: %v", err)
	}
	dir := staging.Dir
	if !strings.HasPrefix(filepath.Base(dir), stagingPrefix) || len(filepath.Base(dir)) != len(stagingPrefix)+8 {
		t.Fatalf("unexpected staging dir name: %s", dir)
	}
	if err := os.WriteFile(filepath.Join(dir, "file"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if err := staging.Close(); err != nil {
		t.Fatalf("close error: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("staging dir should be removed, got %v", err)
	}
	if err := staging.Close(); err != nil {
		t.Fatalf("second close should be a no-op: %v", err)
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	if err := os.WriteFile(src, []byte("copy-me"), 0o644); err != nil {
		t.Fatalf("write error: %v", err)
	}
	dst := filepath.Join(dir, "nested", "dst")
	if err := CopyFile(context.Background(), src, dst); err != nil {
		t.Fatalf("copy error: %v", err)
	}
	body, err := os.ReadFile(dst)
	if err != nil || string(body) != "copy-me" {
		t.Fatalf("copied file mismatch: %q (%v)", body, err)
	}
}

// newTestStore returns a Store backed by a temporary directory.
func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func writeCacheFile(t *testing.T, store Store, cacheFile, body string) string {
	t.Helper()
	filePath, err := store.Path(cacheFile)
	if err != nil {
		t.Fatalf("path error: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}
	if err := os.WriteFile(filePath, []byte(body), 0o644); err != nil {
		t.Fatalf("write error: %v", err)
	}
	return filePath
}
