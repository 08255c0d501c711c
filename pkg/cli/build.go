package cli

import (
	"github.com/spf13/cobra"
)

var buildOpts options

// BuildCmd is the buildme command.
var BuildCmd = &cobra.Command{
	Use:   "buildme [flags] [directories | files | configurations]",
	Short: "Build the projects found in a directory tree",
	Long: `Looks for build_rules.star scripts and project files (Visual Studio,
Xcode, Watcom, CodeBlocks, CodeWarrior, make, ninja) in the given
directories and builds everything it finds. Without arguments the current
directory is processed.`,
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return buildOpts.run(args, actionBuild)
	},
}

func init() {
	registerFlags(BuildCmd, &buildOpts, false)
}
