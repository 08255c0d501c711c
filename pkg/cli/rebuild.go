package cli

import (
	"github.com/spf13/cobra"
)

var rebuildOpts options

// RebuildCmd is the rebuildme command, a clean pass followed by a build
// pass over the same directories.
var RebuildCmd = &cobra.Command{
	Use:     "rebuildme [flags] [directories | files | configurations]",
	Short:   "Clean and then build the projects found in a directory tree",
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return rebuildOpts.run(args, actionRebuild)
	},
}

func init() {
	registerFlags(RebuildCmd, &rebuildOpts, false)
}
