package cli

import (
	"github.com/spf13/cobra"
)

var cleanOpts options

// CleanCmd is the cleanme command.
var CleanCmd = &cobra.Command{
	Use:   "cleanme [flags] [directories]",
	Short: "Remove the build artifacts in a directory tree",
	Long: `Looks for build_rules.star scripts in the given directories and runs
their clean hooks, then asks the native toolchain of every project file to
clean up after itself. Without arguments the current directory is
processed.`,
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cleanOpts.run(args, actionClean)
	},
}

func init() {
	registerFlags(CleanCmd, &cleanOpts, true)
}
