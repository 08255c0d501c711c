package walker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"makeprojects/pkg/invoke"
	"makeprojects/pkg/rules"
)

// testWalker wires a walker to a stub runner that records every native
// tool invocation instead of launching it.
type testWalker struct {
	*Walker
	calls []string
}

func newTestWalker(opts Options) *testWalker {
	tw := &testWalker{}
	inv := &invoke.Invoker{
		HostOS: "linux",
		Run: func(ctx context.Context, dir string, argv []string) (int, string, error) {
			tw.calls = append(tw.calls, strings.Join(argv, " "))
			return 0, "", nil
		},
	}
	tw.Walker = New(rules.NewResolver(""), inv, opts)
	return tw
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestBuildEmptyDir(t *testing.T) {
	w := newTestWalker(Options{})
	summary := w.Build(context.Background(), []string{t.TempDir()}, nil)

	assert.Empty(t, summary.Outcomes)
	assert.Empty(t, w.calls)
	assert.Equal(t, 0, summary.Code())
}

func TestBuildInvokesProjects(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "build.ninja"), "# empty")

	w := newTestWalker(Options{})
	summary := w.Build(context.Background(), []string{dir}, nil)

	require.Len(t, w.calls, 1)
	assert.Contains(t, w.calls[0], "ninja -f")
	assert.Equal(t, 0, summary.Code())
}

func TestBuildHookSequence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, rules.DefaultFileName), `
def prebuild(working_directory, configuration):
    return None

def build(working_directory, configuration):
    return 0

def postbuild(working_directory, configuration):
    return 5
`)

	w := newTestWalker(Options{})
	summary := w.Build(context.Background(), []string{dir}, nil)

	require.Len(t, summary.Outcomes, 3)
	assert.True(t, summary.Outcomes[0].Skipped)
	assert.True(t, strings.HasSuffix(summary.Outcomes[0].Source, ":prebuild"))
	assert.Equal(t, 0, summary.Outcomes[1].Code)
	assert.True(t, strings.HasSuffix(summary.Outcomes[1].Source, ":build"))
	assert.Equal(t, 5, summary.Outcomes[2].Code)
	assert.Equal(t, 5, summary.Code())
}

func TestBuildPrebuildFailureSkipsBuild(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, rules.DefaultFileName), `
def prebuild(working_directory, configuration):
    return 2

def build(working_directory, configuration):
    return 0

def postbuild(working_directory, configuration):
    return 0
`)

	w := newTestWalker(Options{})
	summary := w.Build(context.Background(), []string{dir}, nil)

	var sources []string
	for _, outcome := range summary.Outcomes {
		sources = append(sources, outcome.Source[strings.LastIndex(outcome.Source, ":"):])
	}

	// build is skipped after a failing prebuild, postbuild still runs
	assert.Equal(t, []string{":prebuild", ":postbuild"}, sources)
	assert.Equal(t, 2, summary.Code())
}

func TestBuildDependencyOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", rules.DefaultFileName),
		"BUILDME_DEPENDENCIES = [\"../b\"]\n")
	writeFile(t, filepath.Join(root, "a", "build.ninja"), "# a")
	writeFile(t, filepath.Join(root, "b", "build.ninja"), "# b")

	w := newTestWalker(Options{})
	summary := w.Build(context.Background(), []string{filepath.Join(root, "a")}, nil)

	require.Len(t, w.calls, 2)
	assert.Contains(t, w.calls[0], filepath.Join("b", "build.ninja"))
	assert.Contains(t, w.calls[1], filepath.Join("a", "build.ninja"))
	assert.Equal(t, 0, summary.Code())
}

func TestBuildMissingDependency(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, rules.DefaultFileName),
		"BUILDME_DEPENDENCIES = [\"../nope\"]\n")
	writeFile(t, filepath.Join(dir, "build.ninja"), "# empty")

	w := newTestWalker(Options{})
	summary := w.Build(context.Background(), []string{dir}, nil)

	failures := summary.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, invoke.ExitConfiguration, failures[0].Code)

	// the broken dependency list does not stop the directory itself
	require.Len(t, w.calls, 1)
	assert.Contains(t, w.calls[0], "build.ninja")
}

func TestBuildRecursion(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sub", "deep", "build.ninja"), "# empty")

	w := newTestWalker(Options{})
	w.Build(context.Background(), []string{root}, nil)
	assert.Empty(t, w.calls)

	w = newTestWalker(Options{Recursive: true})
	w.Build(context.Background(), []string{root}, nil)
	require.Len(t, w.calls, 1)
	assert.Contains(t, w.calls[0], "deep")
}

func TestBuildNoRecurseFlag(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, rules.DefaultFileName), "NO_RECURSE = True\n")
	writeFile(t, filepath.Join(root, "sub", "build.ninja"), "# empty")

	w := newTestWalker(Options{Recursive: true})
	summary := w.Build(context.Background(), []string{root}, nil)

	assert.Empty(t, w.calls)
	assert.Equal(t, 0, summary.Code())
}

func TestBuildProcessProjectFilesFlag(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, rules.DefaultFileName),
		"BUILDME_PROCESS_PROJECT_FILES = False\n")
	writeFile(t, filepath.Join(dir, "build.ninja"), "# empty")

	w := newTestWalker(Options{})
	w.Build(context.Background(), []string{dir}, nil)
	assert.Empty(t, w.calls)
}

func TestBuildNonGenericParentIsolation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, rules.DefaultFileName), `
def build(working_directory, configuration):
    return 9
`)
	child := filepath.Join(root, "child")
	require.NoError(t, os.MkdirAll(child, 0700))

	// starting in the child must not trigger the parent's hooks
	w := newTestWalker(Options{})
	summary := w.Build(context.Background(), []string{child}, nil)
	assert.Empty(t, summary.Outcomes)

	w = newTestWalker(Options{})
	summary = w.Build(context.Background(), []string{root}, nil)
	assert.Equal(t, 9, summary.Code())
}

func TestBuildGenericParentSeesStartDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, rules.DefaultFileName), `
BUILDME_GENERIC = True

def build(working_directory, configuration):
    if working_directory.endswith("child"):
        return 0
    return 3
`)
	child := filepath.Join(root, "child")
	require.NoError(t, os.MkdirAll(child, 0700))

	// a generic ancestor hook receives the directory the run started in
	w := newTestWalker(Options{})
	summary := w.Build(context.Background(), []string{child}, nil)
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, 0, summary.Code())
}

func TestBuildExplicitFile(t *testing.T) {
	dir := t.TempDir()
	ninja := filepath.Join(dir, "build.ninja")
	writeFile(t, ninja, "# empty")

	w := newTestWalker(Options{Configurations: []string{"Debug", "Release"}})
	summary := w.Build(context.Background(), nil, []string{ninja})

	require.Len(t, w.calls, 2)
	assert.Contains(t, w.calls[0], "Debug")
	assert.Contains(t, w.calls[1], "Release")
	assert.Equal(t, 0, summary.Code())
}

func TestBuildUnsupportedFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "readme.txt")
	writeFile(t, file, "hi")

	w := newTestWalker(Options{})
	summary := w.Build(context.Background(), nil, []string{file})

	require.Len(t, summary.Failures(), 1)
	assert.Equal(t, invoke.ExitConfiguration, summary.Code())
}

func TestBuildFatalStopsRun(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", rules.DefaultFileName), `
def build(working_directory, configuration):
    return 4
`)
	writeFile(t, filepath.Join(root, "b", "build.ninja"), "# empty")

	w := newTestWalker(Options{Recursive: true, Fatal: true})
	summary := w.Build(context.Background(), []string{root}, nil)

	assert.Equal(t, 4, summary.Code())
	assert.Empty(t, w.calls)
}

func TestCleanRunsHookAndProjects(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, rules.DefaultFileName), `
def clean(working_directory):
    return 0
`)
	writeFile(t, filepath.Join(dir, "build.ninja"), "# empty")

	w := newTestWalker(Options{})
	summary := w.Clean(context.Background(), []string{dir})

	require.Len(t, summary.Outcomes, 2)
	assert.True(t, strings.HasSuffix(summary.Outcomes[0].Source, ":clean"))
	require.Len(t, w.calls, 1)
	assert.Contains(t, w.calls[0], "clean")
	assert.Equal(t, 0, summary.Code())
}

func TestCleanDeletedChildIsSkipped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, rules.DefaultFileName), `
CLEANME_PROCESS_PROJECT_FILES = False

def clean(working_directory):
    delete_folder("temp")
    return 0
`)
	writeFile(t, filepath.Join(root, "temp", "build.ninja"), "# empty")
	writeFile(t, filepath.Join(root, "keep", "build.ninja"), "# empty")

	w := newTestWalker(Options{Recursive: true})
	summary := w.Clean(context.Background(), []string{root})

	// the hook removed temp/ before recursion reached it
	_, err := os.Stat(filepath.Join(root, "temp"))
	assert.True(t, os.IsNotExist(err))

	assert.Empty(t, summary.Failures())
	require.Len(t, w.calls, 1)
	assert.Contains(t, w.calls[0], "keep")
}

func TestCleanDependencyMustBeDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "dep.txt"), "x")
	writeFile(t, filepath.Join(dir, rules.DefaultFileName),
		"CLEANME_DEPENDENCIES = [\"dep.txt\"]\n")

	w := newTestWalker(Options{})
	summary := w.Clean(context.Background(), []string{dir})

	require.Len(t, summary.Failures(), 1)
	assert.Equal(t, invoke.ExitConfiguration, summary.Code())
	assert.Contains(t, summary.Failures()[0].Output, "must be a directory")
}

func TestDirectoryProcessedOnce(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b", "build.ninja"), "# b")
	writeFile(t, filepath.Join(root, "a", rules.DefaultFileName),
		"BUILDME_DEPENDENCIES = [\"../b\"]\n")

	w := newTestWalker(Options{Recursive: true})
	w.Build(context.Background(), []string{root}, nil)

	// b is built as a's dependency and not again during recursion
	require.Len(t, w.calls, 1)
}
