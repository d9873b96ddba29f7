package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateThenValidate(t *testing.T) {
	dir := t.TempDir()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"create", "add_refund_reason", "--dir", dir})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "created migration:")

	files, err := filepath.Glob(filepath.Join(dir, "*_add_refund_reason.sql"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	out.Reset()
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"validate", "--dir", dir})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "migration validation passed")
}

func TestValidateRejectsBadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.sql"), []byte("select 1;"), 0o644))

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"validate", "--dir", dir})
	assert.Error(t, root.Execute())
}

func TestVersionRequiresArgument(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"version"})
	assert.Error(t, root.Execute())
}
