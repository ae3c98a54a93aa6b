// Package dbdump imports a crates.io-style database dump (a gzipped tar
// of crates.csv, versions.csv and dependencies.csv) into a fresh SQLite
// database that index.DBReader can query directly, as an alternative to
// walking the on-disk index tree.
package dbdump

import (
	"archive/tar"
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/klauspost/compress/gzip"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE crates (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE versions (
	id       INTEGER PRIMARY KEY,
	crate_id INTEGER NOT NULL,
	num      TEXT NOT NULL,
	yanked   INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE dependencies (
	id            INTEGER PRIMARY KEY,
	version_id    INTEGER NOT NULL,
	crate_id      INTEGER NOT NULL,
	req           TEXT NOT NULL,
	kind          TEXT NOT NULL DEFAULT 'normal',
	optional      INTEGER NOT NULL DEFAULT 0,
	explicit_name TEXT NOT NULL DEFAULT ''
);
CREATE INDEX idx_versions_crate_id ON versions(crate_id);
CREATE INDEX idx_dependencies_version_id ON dependencies(version_id);
`

// tableColumns maps each dump file to the destination table and the
// column each of its header fields is copied into; any header not
// listed here is ignored.
var tableColumns = map[string]struct {
	table string
	cols  map[string]string
}{
	"crates.csv": {
		table: "crates",
		cols:  map[string]string{"id": "id", "name": "name"},
	},
	"versions.csv": {
		table: "versions",
		cols:  map[string]string{"id": "id", "crate_id": "crate_id", "num": "num", "yanked": "yanked"},
	},
	"dependencies.csv": {
		table: "dependencies",
		cols: map[string]string{
			"id": "id", "version_id": "version_id", "crate_id": "crate_id",
			"req": "req", "kind": "kind", "optional": "optional", "explicit_name": "explicit_name",
		},
	},
}

// Import streams tarGzPath (a gzipped tar containing crates.csv,
// versions.csv and dependencies.csv) and bulk-loads it into a fresh
// SQLite database at dbPath, replacing any existing file there.
func Import(ctx context.Context, tarGzPath, dbPath string) error {
	f, err := os.Open(tarGzPath)
	if err != nil {
		return fmt.Errorf("open dump %s: %w", tarGzPath, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}
	defer gz.Close()

	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing db: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open db %s: %w", dbPath, err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := baseName(hdr.Name)
		spec, ok := tableColumns[name]
		if !ok {
			continue
		}

		if err := importCSV(ctx, db, tr, spec.table, spec.cols); err != nil {
			return fmt.Errorf("import %s: %w", name, err)
		}
	}

	return nil
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

func importCSV(ctx context.Context, db *sql.DB, r io.Reader, table string, cols map[string]string) error {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("read header: %w", err)
	}

	// destCols holds, positionally, the destination column for each CSV
	// field (empty string when the field is unmapped and skipped).
	destCols := make([]string, len(header))
	var insertCols []string
	for i, h := range header {
		if dest, ok := cols[h]; ok {
			destCols[i] = dest
			insertCols = append(insertCols, dest)
		}
	}
	if len(insertCols) == 0 {
		return fmt.Errorf("no recognized columns in header %v", header)
	}

	placeholders := make([]string, len(insertCols))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, joinComma(insertCols), joinComma(placeholders))

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("read row: %w", err)
		}

		args := make([]any, 0, len(insertCols))
		for i, v := range record {
			if destCols[i] == "" {
				continue
			}
			args = append(args, coerce(destCols[i], v))
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert row: %w", err)
		}
	}

	return tx.Commit()
}

// coerce converts the handful of columns that aren't plain text: ids
// are integers, "yanked" and "optional" are booleans serialized as
// CSV "t"/"f" in the upstream dump.
func coerce(col, v string) any {
	switch col {
	case "id", "crate_id", "version_id":
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case "yanked", "optional":
		return v == "t" || v == "true" || v == "1"
	default:
		return v
	}
}

func joinComma(ss []string) string {
	out := ss[0]
	for _, s := range ss[1:] {
		out += "," + s
	}
	return out
}
