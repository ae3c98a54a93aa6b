package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/0xa1bed0/cratesmirror/internal/catalogapi"
	"github.com/0xa1bed0/cratesmirror/internal/config"
	"github.com/0xa1bed0/cratesmirror/internal/dbdump"
	"github.com/0xa1bed0/cratesmirror/internal/diag"
	"github.com/0xa1bed0/cratesmirror/internal/exclude"
	"github.com/0xa1bed0/cratesmirror/internal/fetch"
	"github.com/0xa1bed0/cratesmirror/internal/gitops"
	"github.com/0xa1bed0/cratesmirror/internal/index"
	"github.com/0xa1bed0/cratesmirror/internal/materialize"
	"github.com/0xa1bed0/cratesmirror/internal/resolve"
	"github.com/0xa1bed0/cratesmirror/internal/seed"
)

// Run executes the full seed -> resolve -> materialize -> fetch
// pipeline for one invocation of the CLI.
func Run(ctx context.Context, opts *Options) error {
	log := diag.L()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	env, err := config.LoadEnvOverrides()
	if err != nil {
		return fmt.Errorf("load environment: %w", err)
	}

	exclusions := exclude.New(cfg.Exclusions)

	if len(opts.TestOne) > 0 {
		return runTestOne(ctx, opts, env, exclusions)
	}

	if opts.Update {
		repo := gitops.New(env.IndexDir)
		log.Banner("update index")
		if err := repo.Update(ctx); err != nil {
			return fmt.Errorf("update index: %w", err)
		}
	}

	reader, closeReader, err := openReader(ctx, opts, env)
	if err != nil {
		return err
	}
	defer closeReader()

	log.Banner("seed")
	worklist, err := buildWorklist(ctx, opts, cfg, env, exclusions)
	if err != nil {
		return fmt.Errorf("build seed: %w", err)
	}
	snapshot, err := seed.MarshalSnapshot(worklist)
	if err != nil {
		log.Warn("marshal crates.json: %v", err)
	} else if err := persistBytes(filepath.Join(env.StateDir, "crates.json"), snapshot); err != nil {
		log.Warn("persist crates.json: %v", err)
	}

	log.Banner("resolve")
	resolver := resolve.New(reader, exclusions)
	seen, overrun := resolver.Run(worklist)
	if overrun != nil {
		log.Warn("resolver hit the iteration cap at %d iterations; result is partial", overrun.Iterations)
	}
	catalog := seen.Catalog()
	if err := persistJSON(filepath.Join(env.StateDir, "selected_crates.json"), catalog); err != nil {
		log.Warn("persist selected_crates.json: %v", err)
	}
	log.Info("resolve: %d packages selected", len(catalog))

	destDir := env.LocalRegistry
	if opts.GitRegistry {
		destDir = env.GitRegistry
	}

	log.Banner("materialize")
	mat := materialize.New(reader, destDir, exclusions)
	if err := mat.Run(catalog); err != nil {
		return fmt.Errorf("materialize index: %w", err)
	}

	log.Banner("fetch")
	if opts.Purge {
		ok, err := confirm(opts, "Purge archives no longer referenced by the resolved catalog?")
		if err != nil {
			return fmt.Errorf("confirm purge: %w", err)
		}
		if !ok {
			log.Warn("purge skipped; unused archives left in place")
			opts.Purge = false
		}
	}
	fetcher := fetch.New(env.ArchiveDir, env.ArchiveURL)
	result, err := fetcher.Run(ctx, catalog, opts.Purge)
	if err != nil {
		return fmt.Errorf("fetch archives: %w", err)
	}
	log.Info("fetch: downloaded=%d failed=%d unused=%d purged=%d",
		result.Downloaded, result.Failed, len(result.Unused), result.Purged)

	if opts.Commit {
		ok, err := confirm(opts, fmt.Sprintf("Commit and push %s?", destDir))
		if err != nil {
			return fmt.Errorf("confirm commit: %w", err)
		}
		if ok {
			repo := gitops.New(destDir)
			if err := repo.Commit(ctx, ""); err != nil {
				return fmt.Errorf("commit index: %w", err)
			}
			if err := repo.Push(ctx); err != nil {
				return fmt.Errorf("push index: %w", err)
			}
		} else {
			log.Warn("commit skipped")
		}
	}

	return nil
}

// openReader selects the index.Reader backend: the on-disk index tree
// by default, or a SQLite database imported from a db-dump when
// --db-dump is given. The returned close func is always safe to call.
func openReader(ctx context.Context, opts *Options, env config.EnvOverrides) (index.Reader, func(), error) {
	if opts.DBDumpPath == "" {
		return index.NewFileReader(env.IndexDir), func() {}, nil
	}

	dbPath := filepath.Join(os.TempDir(), "cratesmirror-dbdump.sqlite")
	if err := dbdump.Import(ctx, opts.DBDumpPath, dbPath); err != nil {
		return nil, func() {}, fmt.Errorf("import db-dump: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, func() {}, fmt.Errorf("open imported db-dump: %w", err)
	}
	return index.NewDBReader(db), func() { db.Close() }, nil
}

func buildWorklist(ctx context.Context, opts *Options, cfg config.Config, env config.EnvOverrides, exclusions exclude.Set) (resolve.Worklist, error) {
	snapshotPath := filepath.Join(env.StateDir, "crates.json")
	if !opts.Download {
		if w, err := loadWorklistSnapshot(snapshotPath, exclusions); err == nil {
			return w, nil
		}
	}

	client := catalogapi.NewHTTPClient(env.CatalogURL)
	builder := seed.NewBuilder(client, exclusions)
	builder.Cookbook = cfg.Cookbook
	builder.Additions = cfg.Additions
	builder.Commands = cfg.Commands
	if cfg.TopCrates > 0 {
		builder.GlobalPages = (cfg.TopCrates + 99) / 100
		builder.GlobalPerPage = 100
		if builder.GlobalPerPage > cfg.TopCrates {
			builder.GlobalPerPage = cfg.TopCrates
		}
	}
	if pulls := cfg.CategoryPulls(); len(pulls) > 0 {
		builder.Categories = pulls
	}

	w, err := builder.Build(ctx)
	if err != nil {
		diag.L().Warn("seed: %v", err)
	}
	return w, nil
}

func loadWorklistSnapshot(path string, exclusions exclude.Set) (resolve.Worklist, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string][]string
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	w := resolve.NewWorklist()
	for name, reqs := range raw {
		if exclusions.Matches(name) {
			continue
		}
		for _, r := range reqs {
			w.Add(name, r)
		}
	}
	return w, nil
}

func persistJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return persistBytes(path, b)
}

func persistBytes(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// runTestOne implements the -t/--test-one debug path: seed a single
// requirement and run one resolver pass against it, printing the
// version(s) selected for it. The dependencies that pass enqueues are
// not resolved or printed.
func runTestOne(ctx context.Context, opts *Options, env config.EnvOverrides, exclusions exclude.Set) error {
	args := opts.TestOne
	if len(args) == 1 {
		// Accept the single quoted "<name> <version>" form as well.
		if name, req, ok := strings.Cut(strings.TrimSpace(args[0]), " "); ok {
			args = []string{name, req}
		}
	}
	if len(args) != 2 {
		return fmt.Errorf("--test-one expects exactly two values: <name> <requirement-or-version>")
	}
	name, req := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])

	reader := index.NewFileReader(env.IndexDir)
	w := resolve.NewWorklist()
	w.Add(name, req)

	resolver := resolve.New(reader, exclusions)
	resolver.MaxIterations = 1
	seen, overrun := resolver.Run(w)
	if overrun != nil {
		diag.L().Warn("test-one: stopped after a single resolver iteration; %s may have unexpanded dependencies", name)
	}

	catalog := seen.Catalog()
	b, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
