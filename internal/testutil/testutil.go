// Package testutil provides shared test helpers for setting up sites and vaults.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/starford/notepress/internal/storage"
)

// TestSite creates a temporary site root with a storage.FS over it.
func TestSite(t *testing.T) (string, *storage.FS) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// WriteFile writes content at rel under dir, creating parents.
func WriteFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// GitRunner records git invocations and fails the subcommand named in Fail.
type GitRunner struct {
	Fail string

	mu    sync.Mutex
	calls []string
}

// Run implements vcs.Runner.
func (g *GitRunner) Run(_ context.Context, _, _ string, args ...string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, strings.Join(args, " "))
	if len(args) > 0 && args[0] == g.Fail {
		return "fatal: " + g.Fail + " failed", os.ErrPermission
	}
	return "", nil
}

// Calls returns the recorded invocations.
func (g *GitRunner) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}
