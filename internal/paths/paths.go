// Package paths provides data directory layout resolution.
package paths

import (
	"os"
	"path/filepath"
)

// Layout describes the on-disk layout of a grove data directory:
//
//	<root>/registry.db   metadata store
//	<root>/projects/     one git repository per project
//	<root>/packages/     uploaded artifact files, flat by filename
type Layout struct {
	Root string
}

// Resolve normalizes user input into a Layout.
//
// Resolution order:
//   - explicit non-empty path
//   - GROVE_DATA environment variable
//   - ./.grove/data
func Resolve(path string) Layout {
	if path == "" {
		path = os.Getenv("GROVE_DATA")
	}
	if path == "" {
		path = filepath.Join(".grove", "data")
	}
	return Layout{Root: filepath.Clean(path)}
}

// DatabasePath returns the metadata store location.
func (l Layout) DatabasePath() string {
	return filepath.Join(l.Root, "registry.db")
}

// ProjectsDir returns the directory holding project repositories.
func (l Layout) ProjectsDir() string {
	return filepath.Join(l.Root, "projects")
}

// PackagesDir returns the flat artifact directory.
func (l Layout) PackagesDir() string {
	return filepath.Join(l.Root, "packages")
}

// RepositoryPath returns the repository directory for a project name.
// Callers must validate the name before deriving a path from it.
func (l Layout) RepositoryPath(project string) string {
	return filepath.Join(l.ProjectsDir(), project)
}
