package index

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// DBReader reads version records from a SQLite database imported by
// dbdump.Import, as an alternative to FileReader's on-disk index tree.
type DBReader struct {
	DB *sql.DB
}

// NewDBReader builds a DBReader over an already-open database.
func NewDBReader(db *sql.DB) *DBReader {
	return &DBReader{DB: db}
}

const versionsQuery = `
SELECT v.id, v.num, v.yanked
FROM versions v
JOIN crates c ON c.id = v.crate_id
WHERE c.name = ?
ORDER BY v.id ASC
`

const depsQuery = `
SELECT dep.name, d.req, d.kind, d.optional, d.explicit_name
FROM dependencies d
JOIN crates dep ON dep.id = d.crate_id
WHERE d.version_id = ?
`

// Read implements Reader. Dependency kind and the explicit rename
// column map onto Dep.Kind and Dep.Package exactly as the on-disk
// index's "deps" array does, so callers can use either Reader
// interchangeably.
func (r *DBReader) Read(name string) ([]VersionRecord, error) {
	rows, err := r.DB.Query(versionsQuery, name)
	if err != nil {
		return nil, fmt.Errorf("query versions for %s: %w", name, err)
	}
	defer rows.Close()

	type row struct {
		id     int64
		num    string
		yanked bool
	}
	var versions []row
	for rows.Next() {
		var rr row
		if err := rows.Scan(&rr.id, &rr.num, &rr.yanked); err != nil {
			return nil, fmt.Errorf("scan version row for %s: %w", name, err)
		}
		versions = append(versions, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read versions for %s: %w", name, err)
	}
	if len(versions) == 0 {
		return nil, NoSuchPackage
	}

	records := make([]VersionRecord, 0, len(versions))
	for _, v := range versions {
		deps, err := r.readDeps(v.id)
		if err != nil {
			return nil, err
		}

		rec := VersionRecord{Name: name, Vers: v.num, Yanked: v.yanked, Deps: deps}
		line, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("encode record for %s %s: %w", name, v.num, err)
		}
		rec.Line = string(line)
		records = append(records, rec)
	}

	return records, nil
}

func (r *DBReader) readDeps(versionID int64) ([]Dep, error) {
	rows, err := r.DB.Query(depsQuery, versionID)
	if err != nil {
		return nil, fmt.Errorf("query dependencies for version %d: %w", versionID, err)
	}
	defer rows.Close()

	var deps []Dep
	for rows.Next() {
		var d Dep
		var explicitName string
		if err := rows.Scan(&d.Name, &d.Req, &d.Kind, &d.Optional, &explicitName); err != nil {
			return nil, fmt.Errorf("scan dependency row for version %d: %w", versionID, err)
		}
		if explicitName != "" {
			d.Package = d.Name
			d.Name = explicitName
		}
		deps = append(deps, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read dependencies for version %d: %w", versionID, err)
	}
	return deps, nil
}
