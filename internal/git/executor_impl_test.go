package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func TestRealExecutor_InitRepository(t *testing.T) {
	requireGit(t)
	e := NewRealExecutor()
	path := filepath.Join(t.TempDir(), "widget")

	require.NoError(t, e.InitRepository(path))
	require.True(t, e.IsRepository(path))
}

func TestRealExecutor_InitRepository_Idempotent(t *testing.T) {
	requireGit(t)
	e := NewRealExecutor()
	path := filepath.Join(t.TempDir(), "widget")

	require.NoError(t, e.InitRepository(path))
	require.NoError(t, e.InitRepository(path), "re-initialization must be a no-op")
	require.True(t, e.IsRepository(path))
}

func TestRealExecutor_IsRepository_PlainDirectory(t *testing.T) {
	requireGit(t)
	e := NewRealExecutor()
	dir := t.TempDir()

	require.False(t, e.IsRepository(dir))
}

func TestRealExecutor_CommitLog_EmptyRepository(t *testing.T) {
	requireGit(t)
	e := NewRealExecutor()
	path := filepath.Join(t.TempDir(), "widget")
	require.NoError(t, e.InitRepository(path))

	commits, err := e.CommitLog(path, 10)
	require.NoError(t, err)
	require.Empty(t, commits)
}

func TestRealExecutor_CommitLog_AbsentRepository(t *testing.T) {
	requireGit(t)
	e := NewRealExecutor()

	commits, err := e.CommitLog(filepath.Join(t.TempDir(), "missing"), 10)
	require.NoError(t, err)
	require.Empty(t, commits)
}

func TestRealExecutor_CommitLog_ReturnsCommits(t *testing.T) {
	requireGit(t)
	e := NewRealExecutor()
	path := filepath.Join(t.TempDir(), "widget")
	require.NoError(t, e.InitRepository(path))

	require.NoError(t, os.WriteFile(filepath.Join(path, "README"), []byte("widget\n"), 0600))
	require.NoError(t, e.runGit(path, "add", "README"))
	require.NoError(t, e.runGit(path,
		"-c", "user.name=Test", "-c", "user.email=test@example.org",
		"commit", "--quiet", "-m", "initial import"))

	commits, err := e.CommitLog(path, 10)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	require.Equal(t, "initial import", commits[0].Subject)
	require.Equal(t, "Test", commits[0].Author)
	require.Len(t, commits[0].Hash, 40)
	require.False(t, commits[0].Date.IsZero())
}
