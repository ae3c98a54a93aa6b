package fetch

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeDownloader struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeDownloader) Download(ctx context.Context, url string) (io.ReadCloser, time.Time, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return io.NopCloser(strings.NewReader("crate-bytes")), time.Time{}, nil
}

func (f *fakeDownloader) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestRunDownloadsOnlyMissingArchives(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ArchiveName("serde", "1.0.0")), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	dl := &fakeDownloader{}
	f := New(dir, "https://example.test/crates")
	f.Downloader = dl

	catalog := map[string][]string{"serde": {"1.0.0", "1.0.1"}}
	res, err := f.Run(context.Background(), catalog, false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Downloaded != 1 {
		t.Fatalf("expected 1 download, got %d", res.Downloaded)
	}
	if dl.count() != 1 {
		t.Fatalf("expected exactly one HTTP call, got %d", dl.count())
	}

	if _, err := os.Stat(filepath.Join(dir, ArchiveName("serde", "1.0.1"))); err != nil {
		t.Fatalf("expected the missing archive to be written: %v", err)
	}
}

func TestRunIdempotentOnSecondPass(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dl := &fakeDownloader{}
	f := New(dir, "https://example.test/crates")
	f.Downloader = dl

	catalog := map[string][]string{"serde": {"1.0.0"}}

	if _, err := f.Run(context.Background(), catalog, false); err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstCalls := dl.count()

	f2 := New(dir, "https://example.test/crates")
	f2.Downloader = dl
	res2, err := f2.Run(context.Background(), catalog, false)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if res2.Downloaded != 0 {
		t.Fatalf("second run should download zero archives, got %d", res2.Downloaded)
	}
	if dl.count() != firstCalls {
		t.Fatalf("second run should not have issued any new HTTP calls")
	}
}

func TestRunPurgesUnusedWhenRequested(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stale := filepath.Join(dir, ArchiveName("old-crate", "0.1.0"))
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	dl := &fakeDownloader{}
	f := New(dir, "https://example.test/crates")
	f.Downloader = dl

	res, err := f.Run(context.Background(), map[string][]string{}, true)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Purged != 1 {
		t.Fatalf("expected 1 purge, got %d", res.Purged)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("expected stale archive to be removed")
	}
}

func TestRunReportsUnusedWithoutPurgeFlag(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stale := filepath.Join(dir, ArchiveName("old-crate", "0.1.0"))
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	dl := &fakeDownloader{}
	f := New(dir, "https://example.test/crates")
	f.Downloader = dl

	res, err := f.Run(context.Background(), map[string][]string{}, false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Unused) != 1 {
		t.Fatalf("expected 1 unused archive reported, got %d", len(res.Unused))
	}
	if _, err := os.Stat(stale); err != nil {
		t.Fatal("without --purge the stale archive must survive")
	}
}
