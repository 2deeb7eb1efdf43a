// Package git adapts the repository store: one git repository per project,
// driven through the git binary.
package git

import "time"

// CommitInfo holds information about a commit in a project repository.
type CommitInfo struct {
	Hash      string    // Full 40-char SHA
	ShortHash string    // Abbreviated hash
	Subject   string    // First line of the commit message
	Author    string    // Author name
	Date      time.Time // Author timestamp
}

// Executor defines the interface for repository store operations.
// This abstraction allows easy testing with mock implementations.
type Executor interface {
	// InitRepository creates an empty repository at path, creating the
	// directory if needed. Initializing a path that already holds a
	// repository is a no-op success; concurrent project creations may both
	// reach this call.
	InitRepository(path string) error

	// IsRepository reports whether path holds a git repository.
	IsRepository(path string) bool

	// CommitLog returns up to limit recent commits, newest first.
	// Returns an empty slice for an absent or empty repository.
	CommitLog(path string, limit int) ([]CommitInfo, error)
}
