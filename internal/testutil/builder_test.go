package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuilder_SeedsProjectsAndPackages(t *testing.T) {
	db := NewTestDB(t)

	NewBuilder(t, db).
		WithProject("anvil").
		WithPackage("widget", "widget-1.0.tar.gz", Version("1.0"), Author("Jo")).
		Build()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM projects`).Scan(&count))
	require.Equal(t, 2, count, "package seeding creates the owning project")

	var version, author string
	require.NoError(t, db.QueryRow(
		`SELECT version, author FROM packages WHERE filename = ?`, "widget-1.0.tar.gz",
	).Scan(&version, &author))
	require.Equal(t, "1.0", version)
	require.Equal(t, "Jo", author)
}

func TestBuilder_StandardTestData(t *testing.T) {
	db := NewTestDB(t)

	NewBuilder(t, db).WithStandardTestData().Build()

	var packages int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM packages`).Scan(&packages))
	require.Equal(t, 2, packages)
}
