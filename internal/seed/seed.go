// Package seed builds the initial resolver worklist: a
// top-N catalog pull, per-category pulls, an optional cookbook manifest,
// and static additions/commands from configuration, all subject to the
// exclusion set.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"

	"github.com/0xa1bed0/cratesmirror/internal/catalogapi"
	"github.com/0xa1bed0/cratesmirror/internal/diag"
	"github.com/0xa1bed0/cratesmirror/internal/exclude"
	"github.com/0xa1bed0/cratesmirror/internal/resolve"
)

// CategoryPull is one configured per-category top-N request.
type CategoryPull struct {
	Category string
	Pages    int
	PerPage  int
}

// Builder assembles a resolve.Worklist from the configured sources.
type Builder struct {
	Catalog    catalogapi.Client
	HTTP       *http.Client
	Exclusions exclude.Set
	Log        *diag.Logger

	// GlobalPages/GlobalPerPage drive the unscoped top-N pull; the
	// original tool used 5 pages of 100.
	GlobalPages   int
	GlobalPerPage int

	Categories []CategoryPull

	Cookbook    bool
	CookbookURL string

	Additions []string
	Commands  []string
}

// DefaultCookbookURL is the manifest the original tool reads its
// cookbook dependency seed from (original_source/top-crates.py).
const DefaultCookbookURL = "https://raw.githubusercontent.com/rust-lang-nursery/rust-cookbook/master/Cargo.toml"

// NewBuilder returns a Builder with sensible defaults (a global pull
// plus the original tool's fixed category list) that a caller can
// override from config.
func NewBuilder(client catalogapi.Client, exclusions exclude.Set) *Builder {
	return &Builder{
		Catalog:       client,
		HTTP:          &http.Client{Timeout: 30 * time.Second},
		Exclusions:    exclusions,
		Log:           diag.L(),
		GlobalPages:   5,
		GlobalPerPage: 100,
		Categories: []CategoryPull{
			{Category: "network-programming", Pages: 1, PerPage: 100},
			{Category: "filesystem", Pages: 1, PerPage: 50},
			{Category: "web-programming", Pages: 1, PerPage: 50},
			{Category: "mathematics", Pages: 1, PerPage: 50},
			{Category: "science", Pages: 1, PerPage: 50},
			{Category: "data-structures", Pages: 1, PerPage: 50},
			{Category: "asynchronous", Pages: 1, PerPage: 50},
			{Category: "api-bindings", Pages: 1, PerPage: 50},
			{Category: "command-line-utilities", Pages: 1, PerPage: 50},
			{Category: "embedded", Pages: 1, PerPage: 50},
		},
		CookbookURL: DefaultCookbookURL,
	}
}

// Build assembles the worklist. Per-category catalog errors are
// accumulated (go.uber.org/multierr) and do not abort the other pulls;
// the combined error, if any, is returned alongside the partial
// worklist so the caller can decide whether to treat it as fatal.
func (b *Builder) Build(ctx context.Context) (resolve.Worklist, error) {
	w := resolve.NewWorklist()
	var errs error

	if err := b.pullGlobal(ctx, w); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("global top-N pull: %w", err))
	}

	for _, c := range b.Categories {
		if err := b.pullCategory(ctx, w, c); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("category %q: %w", c.Category, err))
		}
	}

	if b.Cookbook {
		if err := b.pullCookbook(ctx, w); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cookbook manifest: %w", err))
		}
	}

	for _, name := range b.Additions {
		b.add(w, name, resolve.Latest)
	}
	for _, name := range b.Commands {
		b.add(w, name, resolve.Latest)
	}

	return w, errs
}

func (b *Builder) pullGlobal(ctx context.Context, w resolve.Worklist) error {
	return b.pull(ctx, w, b.GlobalPages, b.GlobalPerPage, "")
}

func (b *Builder) pullCategory(ctx context.Context, w resolve.Worklist, c CategoryPull) error {
	return b.pull(ctx, w, c.Pages, c.PerPage, c.Category)
}

func (b *Builder) pull(ctx context.Context, w resolve.Worklist, pages, perPage int, category string) error {
	for page := 1; page <= pages; page++ {
		crates, err := b.Catalog.TopByDownloads(ctx, page, perPage, category)
		if err != nil {
			return err
		}
		for _, c := range crates {
			// Both max_stable_version and max_version are added
			// deliberately: a package whose newest release is a
			// prerelease still gets mirrored.
			if c.MaxStableVersion != "" {
				b.add(w, c.Name, c.MaxStableVersion)
			}
			if c.MaxVersion != "" {
				b.add(w, c.Name, c.MaxVersion)
			}
		}
	}
	return nil
}

func (b *Builder) pullCookbook(ctx context.Context, w resolve.Worklist) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.CookbookURL, nil)
	if err != nil {
		return err
	}

	httpClient := b.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cookbook manifest: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	// Decoded as a loose map so arbitrary TOML value shapes (string
	// version, or {version = "..."} table) under [dependencies] both
	// parse; only the key names matter to seeding.
	var doc struct {
		Dependencies map[string]any `toml:"dependencies"`
	}
	if err := toml.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("parse cookbook manifest: %w", err)
	}

	for name := range doc.Dependencies {
		b.add(w, name, resolve.Latest)
	}
	return nil
}

func (b *Builder) add(w resolve.Worklist, name, req string) {
	if b.Exclusions.Matches(name) {
		return
	}
	w.Add(name, req)
}

// MarshalSnapshot renders w as pretty-printed, stable-keyed JSON for
// persistence as crates.json.
func MarshalSnapshot(w resolve.Worklist) ([]byte, error) {
	out := make(map[string][]string, len(w))
	for name, reqs := range w {
		list := make([]string, 0, len(reqs))
		for r := range reqs {
			list = append(list, r)
		}
		out[name] = list
	}
	return json.MarshalIndent(out, "", "  ")
}
