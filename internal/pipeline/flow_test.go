package pipeline_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/any-hub/nixify/internal/cache"
	"github.com/any-hub/nixify/internal/fetch"
	"github.com/any-hub/nixify/internal/lockfile"
	"github.com/any-hub/nixify/internal/nixhash"
	"github.com/any-hub/nixify/internal/pipeline"
	"github.com/any-hub/nixify/internal/preload"
)

// memoryStore 记录注册过的固定输出路径，同时充当 Probe 与 Registrar。
type memoryStore struct {
	mu    sync.Mutex
	paths map[string]struct{}
	calls int
}

func (m *memoryStore) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.paths[path]
	return ok
}

func (m *memoryStore) AddFixed(ctx context.Context, algo string, paths []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for _, p := range paths {
		digest, err := cache.HashFile(ctx, p)
		if err != nil {
			return err
		}
		m.paths[nixhash.FixedOutputPath(filepath.Base(p), algo, digest, nixhash.DefaultStoreRoot)] = struct{}{}
	}
	return nil
}

func TestCacheMissDownloadGeneratePreload(t *testing.T) {
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("archive-bytes"))
	}))
	defer upstream.Close()

	dir := t.TempDir()
	lockPath := filepath.Join(dir, "composer.lock")
	lock := fmt.Sprintf(`{"packages":[{"name":"psr/log","version":"3.0.0","dist":{"type":"zip","url":"%s/log.zip"}}]}`, upstream.URL)
	if err := os.WriteFile(lockPath, []byte(lock), 0o644); err != nil {
		t.Fatalf("write lock: %v", err)
	}

	store, err := cache.NewStore(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("store error: %v", err)
	}
	fetcher := fetch.New(store, fetch.NewHTTPDownloader(fetch.NewUpstreamClient(5*time.Second), nil), nil)
	nix := &memoryStore{paths: map[string]struct{}{}}

	runner := &pipeline.Runner{
		Index:     cache.NewIndex(store, fetcher, lockfile.DefaultDomains(), nil),
		Preloader: preload.New(store, nix, nix, preload.Options{}, nil),
		Options: pipeline.Options{
			LockFile:   lockPath,
			OutputPath: filepath.Join(dir, "composer-project.json"),
			Preload:    true,
		},
	}

	first, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if hits.Load() != 1 || first.Preload.Preloaded != 1 {
		t.Fatalf("expected one download and one preload, hits=%d result=%+v", hits.Load(), first.Preload)
	}
	entry := first.Document.CacheEntries[0]
	if entry.SHA256 != "0c982986710a026635603031674053ca851fc0e3ea760094a34f59b84f7f6da6" {
		t.Fatalf("unexpected digest %s", entry.SHA256)
	}
	if first.Document.ProjectName != filepath.Base(dir) {
		t.Fatalf("project name should fall back to the lock directory, got %s", first.Document.ProjectName)
	}

	second, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("second run must hit the cache, hits=%d", hits.Load())
	}
	if second.Preload.Preloaded != 0 || second.Preload.Skipped != 1 || nix.calls != 1 {
		t.Fatalf("second run must not register again: %+v calls=%d", second.Preload, nix.calls)
	}
}
