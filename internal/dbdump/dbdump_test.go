package dbdump

import (
	"archive/tar"
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func buildDump(t *testing.T, files map[string]string) string {
	t.Helper()

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)

	for name, body := range files {
		hdr := &tar.Header{Name: "data/" + name, Mode: 0o644, Size: int64(len(body))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write header %s: %v", name, err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatalf("write body %s: %v", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "dump.tar.gz")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write dump: %v", err)
	}
	return path
}

func TestImportPopulatesAllThreeTables(t *testing.T) {
	dumpPath := buildDump(t, map[string]string{
		"crates.csv": "id,name\n1,serde\n2,serde_derive\n",
		"versions.csv": "id,crate_id,num,yanked\n" +
			"10,1,1.0.0,f\n" +
			"11,1,1.0.1,t\n",
		"dependencies.csv": "id,version_id,crate_id,req,kind,optional,explicit_name\n" +
			"100,10,2,^1.0,normal,f,\n",
	})

	dbPath := filepath.Join(t.TempDir(), "out.db")
	if err := Import(context.Background(), dumpPath, dbPath); err != nil {
		t.Fatalf("Import: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open result db: %v", err)
	}
	defer db.Close()

	var cratesCount, versionsCount, depsCount int
	if err := db.QueryRow("SELECT count(*) FROM crates").Scan(&cratesCount); err != nil {
		t.Fatalf("count crates: %v", err)
	}
	if err := db.QueryRow("SELECT count(*) FROM versions").Scan(&versionsCount); err != nil {
		t.Fatalf("count versions: %v", err)
	}
	if err := db.QueryRow("SELECT count(*) FROM dependencies").Scan(&depsCount); err != nil {
		t.Fatalf("count dependencies: %v", err)
	}

	if cratesCount != 2 || versionsCount != 2 || depsCount != 1 {
		t.Fatalf("counts = %d/%d/%d, want 2/2/1", cratesCount, versionsCount, depsCount)
	}

	var yanked bool
	if err := db.QueryRow("SELECT yanked FROM versions WHERE id = 11").Scan(&yanked); err != nil {
		t.Fatalf("read yanked: %v", err)
	}
	if !yanked {
		t.Fatalf("version 11 should be yanked")
	}
}

func TestImportIgnoresUnrelatedTarEntries(t *testing.T) {
	dumpPath := buildDump(t, map[string]string{
		"README.md":  "this is not a table",
		"crates.csv": "id,name\n1,serde\n",
	})

	dbPath := filepath.Join(t.TempDir(), "out.db")
	if err := Import(context.Background(), dumpPath, dbPath); err != nil {
		t.Fatalf("Import: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open result db: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT count(*) FROM crates").Scan(&count); err != nil {
		t.Fatalf("count crates: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}
