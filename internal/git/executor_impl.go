package git

import (
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Compile-time check that RealExecutor implements Executor.
var _ Executor = (*RealExecutor)(nil)

// RealExecutor implements Executor by executing actual git commands.
type RealExecutor struct{}

// NewRealExecutor creates a new RealExecutor.
func NewRealExecutor() *RealExecutor {
	return &RealExecutor{}
}

// runGit executes a git command in dir and returns an error if it fails.
func (e *RealExecutor) runGit(dir string, args ...string) error {
	_, err := e.runGitOutput(dir, args...)
	return err
}

// runGitOutput executes a git command in dir and returns trimmed stdout.
func (e *RealExecutor) runGitOutput(dir string, args ...string) (string, error) {
	//nolint:gosec // G204: args come from controlled sources
	cmd := exec.Command("git", args...)
	if dir != "" {
		cmd.Dir = dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// InitRepository creates an empty repository at path. A path that already
// holds a repository is left untouched, which makes racing initializations
// for the same project safe.
func (e *RealExecutor) InitRepository(path string) error {
	if e.IsRepository(path) {
		return nil
	}
	return e.runGit("", "init", "--quiet", path)
}

// IsRepository reports whether path holds a git repository.
func (e *RealExecutor) IsRepository(path string) bool {
	err := e.runGit(path, "rev-parse", "--git-dir")
	return err == nil
}

// logFieldSep separates fields in the commit log format string.
const logFieldSep = "\x1f"

// CommitLog returns up to limit recent commits, newest first.
func (e *RealExecutor) CommitLog(path string, limit int) ([]CommitInfo, error) {
	if !e.IsRepository(path) {
		return nil, nil
	}
	// An empty repository has no HEAD; report it as an empty log.
	if err := e.runGit(path, "rev-parse", "--verify", "HEAD"); err != nil {
		return nil, nil
	}

	format := strings.Join([]string{"%H", "%h", "%s", "%an", "%aI"}, logFieldSep)
	out, err := e.runGitOutput(path,
		"log", "-n", strconv.Itoa(limit), "--format="+format)
	if err != nil {
		return nil, err
	}

	var commits []CommitInfo
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, logFieldSep)
		if len(fields) != 5 {
			continue
		}
		date, err := time.Parse(time.RFC3339, fields[4])
		if err != nil {
			return nil, fmt.Errorf("parsing commit date %q: %w", fields[4], err)
		}
		commits = append(commits, CommitInfo{
			Hash:      fields[0],
			ShortHash: fields[1],
			Subject:   fields[2],
			Author:    fields[3],
			Date:      date,
		})
	}
	return commits, nil
}
