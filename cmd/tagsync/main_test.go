package main

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tagsync/internal/resolver"
	"tagsync/internal/syncer"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	servicePath = "src/main/java/com/acme/bank/service/AccountService.java"
	implPath    = "src/main/java/com/acme/bank/service/impl/AccountServiceImpl.java"
	ctrlPath    = "src/main/java/com/acme/bank/controller/AccountController.java"
	getAccount  = "com.acme.bank.controller.AccountController#getAccount"
)

func copyBank(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join("..", "..", "testdata", "bank")
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(src, path)
		dst := filepath.Join(root, rel)
		if d.IsDir() {
			return os.MkdirAll(dst, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(dst, data, 0o644)
	})
	require.NoError(t, err)
	return root
}

// resetFlags puts every flag back to its default; cobra keeps values
// between Execute calls on the same command tree.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, root string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{
		"--config", filepath.Join(root, "tagsync.yaml"),
		"--root", root,
		"--db", filepath.Join(root, "history.db"),
		"--no-input",
	}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func read(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, rel))
	require.NoError(t, err)
	return string(data)
}

func TestCLI_SyncHistoryUndo(t *testing.T) {
	root := copyBank(t)
	original := read(t, root, servicePath)

	out, err := execute(t, root, "sync", "--symbol", getAccount, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "would sync ACC-Q-001 Get account")
	assert.Contains(t, out, "+++ ")
	assert.Equal(t, original, read(t, root, servicePath), "dry run must not write")

	out, err = execute(t, root, "sync", "--symbol", getAccount)
	require.NoError(t, err)
	assert.Contains(t, out, "synced ACC-Q-001 Get account")
	assert.Contains(t, read(t, root, servicePath), "ACC-Q-001 Get account")
	assert.Contains(t, read(t, root, implPath), "ACC-Q-001 Get account")

	out, err = execute(t, root, "history")
	require.NoError(t, err)
	assert.Contains(t, out, getAccount)

	out, err = execute(t, root, "undo")
	require.NoError(t, err)
	assert.Contains(t, out, "restored")
	assert.Equal(t, original, read(t, root, servicePath))

	out, err = execute(t, root, "undo")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing to undo")
}

func TestCLI_Resolve(t *testing.T) {
	root := copyBank(t)
	out, err := execute(t, root, "resolve", "--symbol", getAccount)
	require.NoError(t, err)
	assert.Contains(t, out, "method seed")
	assert.Contains(t, out, "AccountService")
	assert.NotContains(t, read(t, root, servicePath), "ACC-Q-001", "resolve is read-only")
}

func TestCLI_CheckReportsUntaggedEntryMethods(t *testing.T) {
	root := copyBank(t)
	out, err := execute(t, root, "check")
	require.Error(t, err)
	assert.Contains(t, out, "missing-entry-tag")
	assert.Contains(t, out, "openAccount")
}

func TestCLI_CheckFixTwiceKeepsOneAnnotation(t *testing.T) {
	root := copyBank(t)
	_, _ = execute(t, root, "check", "--fix")
	assert.Equal(t, 1, strings.Count(read(t, root, ctrlPath), "@ApiMsgId"))

	out, err := execute(t, root, "check", "--fix")
	require.Error(t, err)
	assert.Contains(t, out, "placeholder-tag")
	assert.Contains(t, out, "needs a manual fix")
	assert.NotContains(t, out, "missing-entry-tag")
	assert.Equal(t, 1, strings.Count(read(t, root, ctrlPath), "@ApiMsgId"))
}

func TestCLI_SeedErrors(t *testing.T) {
	root := copyBank(t)
	_, err := execute(t, root, "sync", "--symbol", "com.acme.bank.controller.AccountController#health")
	require.Error(t, err)
	assert.ErrorIs(t, err, syncer.ErrNoTag)
	assert.Equal(t, 2, exitCode(err))

	_, err = execute(t, root, "sync", "--at", "AccountController.java")
	assert.ErrorIs(t, err, syncer.ErrNoLocation)
}

func TestParsePosition(t *testing.T) {
	path, line, err := parsePosition("src/A.java:42")
	require.NoError(t, err)
	assert.Equal(t, "src/A.java", path)
	assert.Equal(t, 42, line)

	for _, bad := range []string{"", "A.java", "A.java:", ":3", "A.java:x", "A.java:0"} {
		_, _, err := parsePosition(bad)
		assert.ErrorIs(t, err, syncer.ErrNoLocation, bad)
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, exitCode(resolver.ErrUnresolvableSeed))
	assert.Equal(t, 1, exitCode(os.ErrPermission))
}
