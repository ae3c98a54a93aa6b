// Package fetch is the Archive Fetcher: it diffs a selected
// catalog against an archives directory, downloads what's missing with
// a bounded worker pool, and optionally purges what's no longer wanted.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/0xa1bed0/cratesmirror/internal/diag"
)

// DefaultWorkers is the fixed worker-pool size.
const DefaultWorkers = 16

// Downloader fetches one archive body; production code uses httpDownloader,
// tests substitute a fake, keeping the network call out of the core logic.
type Downloader interface {
	Download(ctx context.Context, url string) (body io.ReadCloser, lastModified time.Time, err error)
}

// httpDownloader is the production Downloader: a single *http.Client,
// shared by every worker goroutine of a Fetcher (workers do not get a
// client of their own), retried with exponential backoff.
type httpDownloader struct {
	client     *http.Client
	maxRetries uint64
}

func newHTTPDownloader() *httpDownloader {
	return &httpDownloader{client: &http.Client{Timeout: 60 * time.Second}, maxRetries: 5}
}

func (d *httpDownloader) Download(ctx context.Context, url string) (io.ReadCloser, time.Time, error) {
	var (
		body io.ReadCloser
		lm   time.Time
	)

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := d.client.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return fmt.Errorf("archive %s: server error %d", url, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return backoff.Permanent(fmt.Errorf("archive %s: status %d", url, resp.StatusCode))
		}
		if v := resp.Header.Get("Last-Modified"); v != "" {
			if t, err := http.ParseTime(v); err == nil {
				lm = t
			}
		}
		body = resp.Body
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), d.maxRetries)
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, time.Time{}, err
	}
	return body, lm, nil
}

// Fetcher runs the diff-download-purge sequence against Dir.
type Fetcher struct {
	Dir        string
	BaseURL    string
	Workers    int
	Downloader Downloader
	Log        *diag.Logger

	downloaded atomic.Int64
	failed     atomic.Int64
}

// New builds a Fetcher writing archives to dir, fetching from baseURL
// (e.g. "https://static.crates.io/crates").
func New(dir, baseURL string) *Fetcher {
	return &Fetcher{
		Dir:        dir,
		BaseURL:    baseURL,
		Workers:    DefaultWorkers,
		Downloader: newHTTPDownloader(),
		Log:        diag.L(),
	}
}

// ArchiveName is the flat-layout filename for a package version.
func ArchiveName(name, version string) string {
	return fmt.Sprintf("%s-%s.crate", name, version)
}

// Plan is the existing/wanted/unused accounting for a fetch run.
type Plan struct {
	Wanted     map[string]struct{}
	Existing   map[string]struct{}
	ToDownload []string
	Unused     []string
}

func (f *Fetcher) plan(catalog map[string][]string) (Plan, error) {
	wanted := make(map[string]struct{})
	for name, versions := range catalog {
		for _, v := range versions {
			wanted[ArchiveName(name, v)] = struct{}{}
		}
	}

	existing := make(map[string]struct{})
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return Plan{}, err
		}
		if err := os.MkdirAll(f.Dir, 0o755); err != nil {
			return Plan{}, err
		}
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		existing[e.Name()] = struct{}{}
	}

	var toDownload, unused []string
	for name := range wanted {
		if _, ok := existing[name]; !ok {
			toDownload = append(toDownload, name)
		}
	}
	for name := range existing {
		if _, ok := wanted[name]; !ok {
			unused = append(unused, name)
		}
	}
	sort.Strings(toDownload)
	sort.Strings(unused)

	return Plan{Wanted: wanted, Existing: existing, ToDownload: toDownload, Unused: unused}, nil
}

// Result summarizes a Run.
type Result struct {
	Downloaded int
	Failed     int
	Unused     []string
	Purged     int
}

// Run executes the fetcher against catalog, purging unused archives
// when purge is true.
func (f *Fetcher) Run(ctx context.Context, catalog map[string][]string, purge bool) (Result, error) {
	p, err := f.plan(catalog)
	if err != nil {
		return Result{}, fmt.Errorf("plan: %w", err)
	}

	if len(p.Unused) > 0 {
		f.log().Info("fetch: %d unused archives", len(p.Unused))
	}

	purged := 0
	if purge {
		for _, name := range p.Unused {
			if err := os.Remove(filepath.Join(f.Dir, name)); err != nil {
				f.log().Warn("fetch: purge %s: %v", name, err)
				continue
			}
			purged++
		}
	}

	workers := f.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, name := range p.ToDownload {
		name := name
		g.Go(func() error {
			f.downloadOne(ctx, name)
			return nil
		})
	}
	_ = g.Wait() // per-task failures are tracked via f.failed, not returned

	return Result{
		Downloaded: int(f.downloaded.Load()),
		Failed:     int(f.failed.Load()),
		Unused:     p.Unused,
		Purged:     purged,
	}, nil
}

func (f *Fetcher) downloadOne(ctx context.Context, archiveName string) {
	url := f.BaseURL + "/" + archiveName

	body, lastModified, err := f.Downloader.Download(ctx, url)
	if err != nil {
		f.failed.Add(1)
		f.log().Warn("fetch: %s: %v", archiveName, err)
		return
	}
	defer body.Close()

	dest := filepath.Join(f.Dir, archiveName)
	staged := dest + ".tmp-" + uuid.NewString()

	n, err := f.stageAndRename(body, staged, dest)
	if err != nil {
		f.failed.Add(1)
		f.log().Warn("fetch: %s: %v", archiveName, err)
		return
	}

	if !lastModified.IsZero() {
		if err := os.Chtimes(dest, lastModified, lastModified); err != nil {
			f.log().Warn("fetch: %s: set mtime: %v", archiveName, err)
		}
	}

	f.downloaded.Add(1)
	f.log().Debug("fetch: %s (%s) %d/%d", archiveName, humanize.Bytes(uint64(n)), f.downloaded.Load(), f.downloaded.Load()+f.failed.Load())
}

// stageAndRename writes body to a staged temp file and renames it into
// place, so an interrupted download never leaves a half-written archive
// at dest.
func (f *Fetcher) stageAndRename(body io.Reader, staged, dest string) (int64, error) {
	out, err := os.Create(staged)
	if err != nil {
		return 0, err
	}

	n, copyErr := io.Copy(out, body)
	closeErr := out.Close()
	if copyErr != nil {
		os.Remove(staged)
		return 0, copyErr
	}
	if closeErr != nil {
		os.Remove(staged)
		return 0, closeErr
	}

	if err := os.Rename(staged, dest); err != nil {
		os.Remove(staged)
		return 0, err
	}
	return n, nil
}

func (f *Fetcher) log() *diag.Logger {
	if f.Log != nil {
		return f.Log
	}
	return diag.L()
}
