// Package testutil provides test utilities for database setup and seeding.
package testutil

import (
	"database/sql"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/stretchr/testify/require"
)

// Schema mirrors the registry migrations for tests that want a database
// without going through the full migration machinery.
const Schema = `
CREATE TABLE projects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL
);

CREATE TABLE packages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	guid TEXT NOT NULL,
	project_id INTEGER NOT NULL,
	filename TEXT NOT NULL,
	author TEXT NOT NULL DEFAULT '',
	author_email TEXT NOT NULL DEFAULT '',
	classifiers TEXT NOT NULL DEFAULT '[]',
	home_page TEXT NOT NULL DEFAULT '',
	keywords TEXT NOT NULL DEFAULT '[]',
	license TEXT NOT NULL DEFAULT '',
	project_urls TEXT NOT NULL DEFAULT '{}',
	requires_dist TEXT NOT NULL DEFAULT '[]',
	requires_python TEXT NOT NULL DEFAULT '',
	sha256_digest TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	version TEXT NOT NULL DEFAULT '',
	uploaded_at INTEGER NOT NULL,
	FOREIGN KEY (project_id) REFERENCES projects(id)
);

CREATE INDEX idx_packages_project_id ON packages(project_id);
`

// NewTestDB creates an in-memory database with the registry schema.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err, "failed to open in-memory database")
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(Schema)
	require.NoError(t, err, "failed to apply schema")

	return db
}
