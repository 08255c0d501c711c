package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, dir, content string) string {
	t.Helper()

	path := filepath.Join(dir, DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadScriptFlags(t *testing.T) {
	path := writeScript(t, t.TempDir(), `
BUILDME_GENERIC = True
BUILDME_CONTINUE = True
BUILDME_DEPENDENCIES = ["a", "b"]
CLEANME_NO_RECURSE = True
DEPENDENCIES = ["../lib"]

def build(working_directory, configuration):
    return 0
`)

	rules, err := LoadScript(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, path, rules.Path)
	assert.Equal(t, filepath.Dir(path), rules.Dir)

	assert.True(t, rules.Build.Generic)
	assert.True(t, rules.Build.Continue)
	assert.Equal(t, []string{"a", "b"}, rules.Build.Dependencies)
	assert.False(t, rules.Build.NoRecurse)
	assert.True(t, rules.Build.ProcessProjectFiles)

	// the clean side falls back to the bare DEPENDENCIES global
	assert.False(t, rules.Clean.Generic)
	assert.False(t, rules.Clean.Continue)
	assert.True(t, rules.Clean.NoRecurse)
	assert.Equal(t, []string{"../lib"}, rules.Clean.Dependencies)

	assert.True(t, rules.HasHook(HookBuild))
	assert.False(t, rules.HasHook(HookClean))
}

func TestLoadScriptDisablesProjectFiles(t *testing.T) {
	path := writeScript(t, t.TempDir(), "PROCESS_PROJECT_FILES = False\n")

	rules, err := LoadScript(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, rules.Build.ProcessProjectFiles)
	assert.False(t, rules.Clean.ProcessProjectFiles)
}

func TestLoadScriptMalformed(t *testing.T) {
	_, err := LoadScript(context.Background(),
		writeScript(t, t.TempDir(), "BUILDME_NO_RECURSE = \"yes\"\n"))
	assert.Error(t, err)

	_, err = LoadScript(context.Background(),
		writeScript(t, t.TempDir(), "build = 42\n"))
	assert.Error(t, err)

	_, err = LoadScript(context.Background(),
		writeScript(t, t.TempDir(), "this is not starlark\n"))
	assert.Error(t, err)
}

func TestCallHookReturnProtocol(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, `
def prebuild(working_directory, configuration):
    pass

def build(working_directory, configuration):
    if configuration == "Release":
        return 8
    return 0

def clean(working_directory):
    if isdir(working_directory):
        return 0
    return 1
`)

	rules, err := LoadScript(context.Background(), path)
	require.NoError(t, err)

	ctx := context.Background()

	// None means "nothing to do here"
	code, skipped, err := rules.CallHook(ctx, HookPrebuild, dir, "all")
	require.NoError(t, err)
	assert.True(t, skipped)
	assert.Equal(t, 0, code)

	code, skipped, err = rules.CallHook(ctx, HookBuild, dir, "Release")
	require.NoError(t, err)
	assert.False(t, skipped)
	assert.Equal(t, 8, code)

	code, skipped, err = rules.CallHook(ctx, HookBuild, dir, "Debug")
	require.NoError(t, err)
	assert.False(t, skipped)
	assert.Equal(t, 0, code)

	// clean hooks receive the working directory only
	code, skipped, err = rules.CallHook(ctx, HookClean, dir, "")
	require.NoError(t, err)
	assert.False(t, skipped)
	assert.Equal(t, 0, code)

	// undeclared hooks are skipped
	_, skipped, err = rules.CallHook(ctx, HookPostbuild, dir, "all")
	require.NoError(t, err)
	assert.True(t, skipped)
}

func TestCallHookFailure(t *testing.T) {
	path := writeScript(t, t.TempDir(), `
def build(working_directory, configuration):
    fail("nope")

def clean(working_directory):
    return "done"
`)

	rules, err := LoadScript(context.Background(), path)
	require.NoError(t, err)

	_, _, err = rules.CallHook(context.Background(), HookBuild, rules.Dir, "all")
	assert.Error(t, err)

	// anything besides None or an int is a script bug
	_, _, err = rules.CallHook(context.Background(), HookClean, rules.Dir, "")
	assert.Error(t, err)
}

func TestExecuteBuiltin(t *testing.T) {
	path := writeScript(t, t.TempDir(), `
def build(working_directory, configuration):
    out = execute("echo hello")
    if out.strip() == "hello":
        return 0
    return 1
`)

	rules, err := LoadScript(context.Background(), path)
	require.NoError(t, err)

	code, skipped, err := rules.CallHook(context.Background(), HookBuild, rules.Dir, "all")
	require.NoError(t, err)
	assert.False(t, skipped)
	assert.Equal(t, 0, code)
}

func TestDeleteBuiltins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "temp"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.txt"), []byte("x"), 0600))

	path := writeScript(t, dir, `
def clean(working_directory):
    delete_folder("temp")
    delete_file("stale.txt")
    delete_file("missing.txt")
    return 0
`)

	rules, err := LoadScript(context.Background(), path)
	require.NoError(t, err)

	code, _, err := rules.CallHook(context.Background(), HookClean, dir, "")
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	_, err = os.Stat(filepath.Join(dir, "temp"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "stale.txt"))
	assert.True(t, os.IsNotExist(err))
}
