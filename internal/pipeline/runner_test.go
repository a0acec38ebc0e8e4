package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/any-hub/nixify/internal/cache"
	"github.com/any-hub/nixify/internal/lockfile"
	"github.com/any-hub/nixify/internal/manifest"
	"github.com/any-hub/nixify/internal/preload"
)

const lockJSON = `{
    "packages": [
        {
            "name": "psr/log",
            "version": "3.0.0",
            "dist": {
                "type": "zip",
                "url": "https://api.github.com/repos/php-fig/log/zipball/fe5ea303b0887d5caefd3d431c3e61ad47037001",
                "reference": "fe5ea303b0887d5caefd3d431c3e61ad47037001"
            }
        },
        {
            "name": "acme/local",
            "version": "dev-main",
            "dist": {"type": "path", "url": "../packages/local"}
        },
        {
            "name": "acme/tool",
            "version": "1.x-dev",
            "dist": {"type": "git", "url": "https://example.com/acme/tool.git"}
        }
    ]
}`

const psrCacheFile = "psr/log/4109d4b3f74b78a13cb175029bcb2384f59f0a52.zip"

type recordingPreloader struct {
	calls   int
	entries []cache.Entry
	err     error
}

func (p *recordingPreloader) Run(ctx context.Context, entries []cache.Entry) (preload.Result, error) {
	p.calls++
	p.entries = entries
	return preload.Result{Preloaded: len(entries), Err: p.err}, p.err
}

type failingClassifier struct{ err error }

func (f failingClassifier) Classify(context.Context, lockfile.Package) (cache.Entry, bool, error) {
	return cache.Entry{}, false, f.err
}

func newRunner(t *testing.T, lockBody string, preloadEnabled bool) (*Runner, *recordingPreloader, string) {
	t.Helper()
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "composer.lock")
	if lockBody != "" {
		if err := os.WriteFile(lockPath, []byte(lockBody), 0o644); err != nil {
			t.Fatalf("write lock: %v", err)
		}
	}

	store, err := cache.NewStore(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	cached, err := store.Path(psrCacheFile)
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(cached), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(cached, []byte("archive-bytes"), 0o644); err != nil {
		t.Fatalf("write cache: %v", err)
	}

	recorder := &recordingPreloader{}
	runner := &Runner{
		Index:     cache.NewIndex(store, nil, lockfile.DefaultDomains(), nil),
		Preloader: recorder,
		Options: Options{
			LockFile:    lockPath,
			OutputPath:  filepath.Join(dir, "composer-project.json"),
			ProjectName: "acme/app",
			Preload:     preloadEnabled,
		},
	}
	return runner, recorder, dir
}

func TestRunCollectsGeneratesAndPreloads(t *testing.T) {
	runner, recorder, _ := newRunner(t, lockJSON, true)

	report, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Packages != 3 || len(report.Entries) != 2 {
		t.Fatalf("unsupported package should be skipped: %+v", report)
	}
	if recorder.calls != 1 || len(recorder.entries) != 1 || recorder.entries[0].CacheFile != psrCacheFile {
		t.Fatalf("preloader should receive the cached entry only: %+v", recorder.entries)
	}

	data, err := os.ReadFile(runner.Options.OutputPath)
	if err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
	want, err := manifest.Marshal(report.Document)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != string(want) {
		t.Fatalf("manifest on disk differs from report")
	}
	if report.Document.ProjectName != "acme_app" || report.Document.CacheEntries[0].SHA256 != "0c982986710a026635603031674053ca851fc0e3ea760094a34f59b84f7f6da6" {
		t.Fatalf("unexpected document %+v", report.Document)
	}

	last, ok := runner.Last()
	if !ok || last.ProjectName != "acme_app" {
		t.Fatalf("last document not remembered")
	}
}

func TestRunSkipsPreloadWhenDisabled(t *testing.T) {
	runner, recorder, _ := newRunner(t, lockJSON, false)
	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if recorder.calls != 0 {
		t.Fatalf("preload disabled but preloader invoked")
	}
}

func TestRunPreloadFailureIsNotFatal(t *testing.T) {
	runner, recorder, _ := newRunner(t, lockJSON, true)
	recorder.err = errors.New("nix-store failed")

	report, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("preload failure should not fail the run: %v", err)
	}
	if report.Preload.Err == nil {
		t.Fatalf("preload error should be reported")
	}
	if _, err := os.Stat(runner.Options.OutputPath); err != nil {
		t.Fatalf("manifest should still be written: %v", err)
	}
}

func TestRunWithoutLockWritesEmptyManifest(t *testing.T) {
	runner, recorder, _ := newRunner(t, "", true)
	report, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Packages != 0 || len(report.Document.CacheEntries) != 0 {
		t.Fatalf("expected empty report, got %+v", report)
	}
	if recorder.calls != 1 || len(recorder.entries) != 0 {
		t.Fatalf("preloader should see no entries")
	}
}

func TestRunMalformedLockTreatedAsEmpty(t *testing.T) {
	runner, _, _ := newRunner(t, "{not json", false)
	report, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Packages != 0 {
		t.Fatalf("malformed lock should yield no packages")
	}
}

func TestRunAbortsOnCollectFailure(t *testing.T) {
	runner, recorder, _ := newRunner(t, lockJSON, true)
	boom := errors.New("download failed")
	runner.Index = failingClassifier{err: boom}

	_, err := runner.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected collect failure, got %v", err)
	}
	if _, statErr := os.Stat(runner.Options.OutputPath); !os.IsNotExist(statErr) {
		t.Fatalf("manifest must not be written after a failed collect")
	}
	if recorder.calls != 0 {
		t.Fatalf("preload must not run after a failed collect")
	}
	if _, ok := runner.Last(); ok {
		t.Fatalf("no document should be remembered")
	}
}

func TestSplitKeepsOrder(t *testing.T) {
	entries := []cache.Entry{
		{Kind: cache.KindCached, Name: "a"},
		{Kind: cache.KindLocalPath, Name: "b"},
		{Kind: cache.KindCached, Name: "c"},
	}
	cached, local := Split(entries)
	if len(cached) != 2 || cached[0].Name != "a" || cached[1].Name != "c" {
		t.Fatalf("unexpected cached split %+v", cached)
	}
	if len(local) != 1 || local[0].Name != "b" {
		t.Fatalf("unexpected local split %+v", local)
	}
}
