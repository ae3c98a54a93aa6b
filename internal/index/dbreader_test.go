package index

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
CREATE TABLE crates (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
CREATE TABLE versions (id INTEGER PRIMARY KEY, crate_id INTEGER NOT NULL, num TEXT NOT NULL, yanked INTEGER NOT NULL DEFAULT 0);
CREATE TABLE dependencies (id INTEGER PRIMARY KEY, version_id INTEGER NOT NULL, crate_id INTEGER NOT NULL, req TEXT NOT NULL, kind TEXT NOT NULL DEFAULT 'normal', optional INTEGER NOT NULL DEFAULT 0, explicit_name TEXT NOT NULL DEFAULT '');
`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func TestDBReaderReadReconstructsRecordsInIDOrder(t *testing.T) {
	db := openTestDB(t)

	mustExec(t, db, `INSERT INTO crates (id, name) VALUES (1, 'serde'), (2, 'serde_derive')`)
	mustExec(t, db, `INSERT INTO versions (id, crate_id, num, yanked) VALUES
		(10, 1, '1.0.0', 0),
		(11, 1, '1.0.1', 1),
		(12, 1, '1.0.2', 0)`)
	mustExec(t, db, `INSERT INTO dependencies (version_id, crate_id, req, kind, optional, explicit_name) VALUES
		(10, 2, '^1.0', 'normal', 0, '')`)

	r := NewDBReader(db)
	records, err := r.Read("serde")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}
	if records[0].Vers != "1.0.0" || records[1].Vers != "1.0.1" || records[2].Vers != "1.0.2" {
		t.Fatalf("records out of order: %+v", records)
	}
	if !records[1].Yanked {
		t.Fatalf("record 1.0.1 should be yanked")
	}
	if len(records[0].Deps) != 1 || records[0].Deps[0].ResolvedName() != "serde_derive" {
		t.Fatalf("unexpected deps for 1.0.0: %+v", records[0].Deps)
	}
}

func TestDBReaderReadAppliesExplicitRename(t *testing.T) {
	db := openTestDB(t)

	mustExec(t, db, `INSERT INTO crates (id, name) VALUES (1, 'app'), (2, 'tokio')`)
	mustExec(t, db, `INSERT INTO versions (id, crate_id, num, yanked) VALUES (10, 1, '0.1.0', 0)`)
	mustExec(t, db, `INSERT INTO dependencies (version_id, crate_id, req, kind, optional, explicit_name) VALUES
		(10, 2, '1', 'normal', 0, 'rt')`)

	r := NewDBReader(db)
	records, err := r.Read("app")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	dep := records[0].Deps[0]
	if dep.Name != "rt" {
		t.Fatalf("Dep.Name = %q, want alias %q", dep.Name, "rt")
	}
	if dep.ResolvedName() != "tokio" {
		t.Fatalf("ResolvedName() = %q, want %q", dep.ResolvedName(), "tokio")
	}
}

func TestDBReaderReadMissingPackageReturnsNoSuchPackage(t *testing.T) {
	db := openTestDB(t)
	r := NewDBReader(db)

	if _, err := r.Read("does-not-exist"); err != NoSuchPackage {
		t.Fatalf("err = %v, want NoSuchPackage", err)
	}
}

func mustExec(t *testing.T, db *sql.DB, query string) {
	t.Helper()
	if _, err := db.Exec(query); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}
