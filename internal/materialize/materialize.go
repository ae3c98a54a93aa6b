// Package materialize emits the pruned index tree for a resolved
// catalog: prune the destination's prefix-bucket
// directories, then write a byte-for-byte line-filtered projection of
// each source index file.
package materialize

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/0xa1bed0/cratesmirror/internal/exclude"
	"github.com/0xa1bed0/cratesmirror/internal/index"
)

// Materializer writes a selected catalog out to Dest in the canonical
// index path layout.
type Materializer struct {
	Source     index.Reader
	Dest       string
	Exclusions exclude.Set
}

// New builds a Materializer reading from src and writing to dest.
func New(src index.Reader, dest string, exclusions exclude.Set) *Materializer {
	return &Materializer{Source: src, Dest: dest, Exclusions: exclusions}
}

// Run executes the prune-then-write sequence for catalog (package name
// -> retained version strings).
func (m *Materializer) Run(catalog map[string][]string) error {
	if err := m.prune(); err != nil {
		return fmt.Errorf("prune destination: %w", err)
	}

	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if m.Exclusions.Matches(name) {
			if err := m.removeStale(name); err != nil {
				return err
			}
			continue
		}

		if err := m.writePackage(name, catalog[name]); err != nil {
			return fmt.Errorf("materialize %s: %w", name, err)
		}
	}

	return nil
}

// prune removes every top-level directory in Dest whose name has length
// <= 2 — the prefix buckets — leaving ancillary files (registry config,
// VCS metadata) untouched.
func (m *Materializer) prune() error {
	entries, err := os.ReadDir(m.Dest)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(m.Dest, 0o755)
		}
		return err
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if len(e.Name()) > 2 {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.Dest, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (m *Materializer) removeStale(name string) error {
	path := filepath.Join(m.Dest, index.PackagePath(name))
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale %s: %w", name, err)
	}
	return nil
}

func (m *Materializer) writePackage(name string, versions []string) error {
	records, err := m.Source.Read(name)
	if err != nil {
		if err == index.NoSuchPackage {
			return nil
		}
		return err
	}

	wanted := make(map[string]struct{}, len(versions))
	for _, v := range versions {
		wanted[v] = struct{}{}
	}

	var b strings.Builder
	for _, rec := range records {
		if _, ok := wanted[rec.Vers]; !ok {
			continue
		}
		b.WriteString(rec.Line)
		b.WriteByte('\n')
	}

	dest := filepath.Join(m.Dest, index.PackagePath(name))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte(b.String()), 0o644)
}
