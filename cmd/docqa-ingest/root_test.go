package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/loader"
)

func writeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range []string{"a.txt", "b.PDF", "c.png", "sub/d.csv", "sub/e.bin"} {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	}
	return root
}

func TestCollectFiles(t *testing.T) {
	root := writeTree(t)
	registry := loader.Default(nil)

	t.Run("Flat", func(t *testing.T) {
		files, skipped, err := collectFiles([]string{root}, false, registry)
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(root, "a.txt"), filepath.Join(root, "b.PDF")}, files)
		assert.Equal(t, []string{filepath.Join(root, "c.png")}, skipped)
	})

	t.Run("Recursive", func(t *testing.T) {
		files, skipped, err := collectFiles([]string{root}, true, registry)
		require.NoError(t, err)
		assert.Len(t, files, 3)
		assert.Contains(t, files, filepath.Join(root, "sub", "d.csv"))
		assert.Len(t, skipped, 2)
	})

	t.Run("Single File", func(t *testing.T) {
		files, _, err := collectFiles([]string{filepath.Join(root, "a.txt")}, false, registry)
		require.NoError(t, err)
		assert.Len(t, files, 1)
	})

	t.Run("Missing Path", func(t *testing.T) {
		_, _, err := collectFiles([]string{filepath.Join(root, "nope")}, false, registry)
		assert.Error(t, err)
	})
}

func TestRootCmd_DryRun(t *testing.T) {
	root := writeTree(t)

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"--dry-run", "-r", root})

	require.NoError(t, cmd.Execute())
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, errOut.String(), "skip "+filepath.Join(root, "c.png"))
}

func TestRootCmd_RequiresArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	assert.Error(t, cmd.Execute())
}
