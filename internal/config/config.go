// Package config reads the TOML seed-source document and overlays
// process environment variables onto a parallel set of runtime
// settings the TOML document doesn't cover (paths, the catalog base
// URL, HTTP timeout).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"

	"github.com/0xa1bed0/cratesmirror/internal/seed"
)

// Config is the decoded seed-source document: what to pull from the
// catalog, and what to leave out.
type Config struct {
	TopCrates  int              `toml:"top-crates"`
	Categories []map[string]int `toml:"categories"`
	Cookbook   bool             `toml:"cookbook"`
	Additions  []string         `toml:"additions"`
	Commands   []string         `toml:"commands"`
	Exclusions []string         `toml:"exclusions"`
}

// Load decodes a TOML document at path into a Config.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return c, nil
}

// categoryPageSize is the page size used when converting a configured
// per-category count into pages; it matches the global pull's default.
const categoryPageSize = 100

// CategoryPulls translates the TOML `categories` list — single-entry
// `{name: count}` tables — into the paginated pulls the seed builder
// expects.
func (c Config) CategoryPulls() []seed.CategoryPull {
	pulls := make([]seed.CategoryPull, 0, len(c.Categories))
	for _, entry := range c.Categories {
		for name, count := range entry {
			if count <= 0 {
				continue
			}
			pages := (count + categoryPageSize - 1) / categoryPageSize
			perPage := count
			if perPage > categoryPageSize {
				perPage = categoryPageSize
			}
			pulls = append(pulls, seed.CategoryPull{Category: name, Pages: pages, PerPage: perPage})
		}
	}
	return pulls
}

// EnvOverrides holds the runtime settings the TOML document doesn't
// carry: filesystem locations and network tuning, sourced from
// CRATESMIRROR_* environment variables.
type EnvOverrides struct {
	IndexDir      string        `env:"INDEX_DIR" envDefault:"./index"`
	ArchiveDir    string        `env:"ARCHIVE_DIR" envDefault:"./crates"`
	CatalogURL    string        `env:"CATALOG_URL" envDefault:"https://crates.io/api/v1"`
	ArchiveURL    string        `env:"ARCHIVE_URL" envDefault:"https://static.crates.io/crates"`
	HTTPTimeout   time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	LocalRegistry string        `env:"LOCAL_REGISTRY_DIR" envDefault:"./local-registry"`
	GitRegistry   string        `env:"GIT_REGISTRY_DIR" envDefault:"./git-registry"`
	StateDir      string        `env:"STATE_DIR" envDefault:"."`
}

// LoadEnvOverrides parses CRATESMIRROR_*-prefixed environment variables
// into an EnvOverrides, applying the declared defaults for anything unset.
func LoadEnvOverrides() (EnvOverrides, error) {
	var o EnvOverrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: "CRATESMIRROR_"}); err != nil {
		return EnvOverrides{}, fmt.Errorf("parse environment: %w", err)
	}
	return o, nil
}
