package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolve_ExplicitPath(t *testing.T) {
	l := Resolve("/var/lib/grove/")
	require.Equal(t, "/var/lib/grove", l.Root)
}

func TestResolve_EnvFallback(t *testing.T) {
	t.Setenv("GROVE_DATA", "/srv/grove")
	l := Resolve("")
	require.Equal(t, "/srv/grove", l.Root)
}

func TestResolve_Default(t *testing.T) {
	t.Setenv("GROVE_DATA", "")
	l := Resolve("")
	require.Equal(t, filepath.Join(".grove", "data"), l.Root)
}

func TestLayout_Paths(t *testing.T) {
	l := Layout{Root: "/data"}
	require.Equal(t, "/data/registry.db", l.DatabasePath())
	require.Equal(t, "/data/projects", l.ProjectsDir())
	require.Equal(t, "/data/packages", l.PackagesDir())
	require.Equal(t, "/data/projects/widget", l.RepositoryPath("widget"))
}
