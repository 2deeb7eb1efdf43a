package testutil

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
)

// Builder seeds registry rows for tests in a fluent style.
type Builder struct {
	t        *testing.T
	db       *sql.DB
	projects []string
	packages []packageData
}

// NewBuilder creates a seed builder over db.
func NewBuilder(t *testing.T, db *sql.DB) *Builder {
	t.Helper()
	return &Builder{t: t, db: db}
}

// WithProject queues a project row.
func (b *Builder) WithProject(name string) *Builder {
	b.projects = append(b.projects, name)
	return b
}

// WithPackage queues a package row for the named project. The project is
// created implicitly if it was not queued explicitly.
func (b *Builder) WithPackage(project, filename string, opts ...PackageOption) *Builder {
	pkg := defaultPackage(project, filename)
	for _, opt := range opts {
		opt(&pkg)
	}
	b.packages = append(b.packages, pkg)
	return b
}

// Build inserts all queued rows.
func (b *Builder) Build() {
	b.t.Helper()

	for _, name := range b.projects {
		b.insertProject(name)
	}
	for _, pkg := range b.packages {
		b.insertPackage(pkg)
	}
}

func (b *Builder) insertProject(name string) int64 {
	b.t.Helper()

	var id int64
	err := b.db.QueryRow(`SELECT id FROM projects WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id
	}
	require.ErrorIs(b.t, err, sql.ErrNoRows, "failed to look up project %s", name)

	result, err := b.db.Exec(`INSERT INTO projects (name, created_at) VALUES (?, unixepoch())`, name)
	require.NoError(b.t, err, "failed to insert project %s", name)
	id, err = result.LastInsertId()
	require.NoError(b.t, err)
	return id
}

func (b *Builder) insertPackage(pkg packageData) {
	b.t.Helper()

	projectID := b.insertProject(pkg.project)
	_, err := b.db.Exec(
		`INSERT INTO packages (guid, project_id, filename, author, summary, sha256_digest, version, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, unixepoch())`,
		pkg.guid, projectID, pkg.filename, pkg.author, pkg.summary, pkg.sha256, pkg.version,
	)
	require.NoError(b.t, err, "failed to insert package %s", pkg.filename)
}
