package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"makeprojects/pkg/invoke"
)

func TestBuildFlags(t *testing.T) {
	flags := BuildCmd.Flags()

	for name, shorthand := range map[string]string{
		"recursive": "r",
		"verbose":   "v",
		"preview":   "n",
		"quit":      "q",
		"file":      "f",
		"dir":       "d",
		"config":    "c",
	} {
		flag := flags.Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, shorthand, flag.Shorthand, name)
	}

	assert.NotNil(t, flags.Lookup("docs"))
	assert.NotNil(t, flags.Lookup("rules-file"))
	assert.NotNil(t, flags.Lookup("generate-rules"))
}

func TestCleanFlags(t *testing.T) {
	flags := CleanCmd.Flags()

	assert.NotNil(t, flags.Lookup("recursive"))
	assert.NotNil(t, flags.Lookup("dir"))

	// configurations and documentation make no sense for a clean
	assert.Nil(t, flags.Lookup("config"))
	assert.Nil(t, flags.Lookup("docs"))
	assert.Nil(t, flags.Lookup("file"))
}

func TestRebuildFlags(t *testing.T) {
	flags := RebuildCmd.Flags()
	assert.NotNil(t, flags.Lookup("config"))
	assert.NotNil(t, flags.Lookup("docs"))
}

func TestReportSetsExitCode(t *testing.T) {
	summary := &invoke.Summary{}
	summary.Add(invoke.Outcome{Source: "a"})
	report(summary, false, actionBuild)
	assert.Equal(t, 0, exitCode)

	summary.Add(invoke.Outcome{Source: "b", Code: 4})
	report(summary, false, actionBuild)
	assert.Equal(t, 4, exitCode)
}
