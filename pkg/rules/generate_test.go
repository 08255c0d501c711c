package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDefault(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteDefault(dir, ""))

	path := filepath.Join(dir, DefaultFileName)
	_, err := os.Stat(path)
	require.NoError(t, err)

	// the sample must load cleanly
	rules, err := LoadScript(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, rules.Build.NoRecurse)
	assert.True(t, rules.HasHook(HookClean))

	// never clobber an existing script
	assert.Error(t, WriteDefault(dir, ""))
}

func TestWriteDefaultCleanHook(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "temp"), 0700))
	require.NoError(t, WriteDefault(dir, ""))

	rules, err := LoadScript(context.Background(), filepath.Join(dir, DefaultFileName))
	require.NoError(t, err)

	code, skipped, err := rules.CallHook(context.Background(), HookClean, dir, "")
	require.NoError(t, err)
	assert.False(t, skipped)
	assert.Equal(t, 0, code)

	_, err = os.Stat(filepath.Join(dir, "temp"))
	assert.True(t, os.IsNotExist(err))
}
