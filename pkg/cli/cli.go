// Package cli implements the buildme, cleanme and rebuildme commands on
// top of the walker.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"makeprojects/pkg/invoke"
	"makeprojects/pkg/rules"
	"makeprojects/pkg/sniff"
	"makeprojects/pkg/term"
	"makeprojects/pkg/walker"
)

// Version is set at build time via -ldflags.
var Version = "1.0.0"

type action int

const (
	actionBuild action = iota
	actionClean
	actionRebuild
)

type options struct {
	recursive bool
	verbose   bool
	preview   bool
	fatal     bool
	docs      bool
	files     []string
	dirs      []string
	configs   []string
	rulesFile string
	generate  bool
}

// registerFlags wires the shared flag set. Clean commands have no
// configurations or documentation to speak of.
func registerFlags(cmd *cobra.Command, opts *options, clean bool) {
	// errors are reported through Execute, not cobra
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	f := cmd.Flags()
	f.BoolVarP(&opts.recursive, "recursive", "r", false, "descend into subdirectories")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	f.BoolVarP(&opts.preview, "preview", "n", false, "print the commands without running them")
	f.BoolVarP(&opts.fatal, "quit", "q", false, "quit after the first error")
	f.StringArrayVarP(&opts.dirs, "dir", "d", nil, "directory to process, can be repeated")
	f.StringVar(&opts.rulesFile, "rules-file", rules.DefaultFileName, "name of the rules script to look for")
	f.BoolVar(&opts.generate, "generate-rules", false, "write a default rules script to the working directory and exit")

	if !clean {
		f.StringArrayVarP(&opts.files, "file", "f", nil, "project file to process, can be repeated")
		f.StringArrayVarP(&opts.configs, "config", "c", nil, "configuration to build, can be repeated")
		f.BoolVar(&opts.docs, "docs", false, "build doxygen documentation")
	}
}

// exitCode holds the aggregate result of the run for Execute.
var exitCode int

// Execute runs cmd and exits the process with the run's aggregate code.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, eris.ToString(err, os.Getenv("MAKEPROJECTS_DEBUG") != ""))
		os.Exit(invoke.ExitConfiguration)
	}
	os.Exit(exitCode)
}

func (opts *options) run(args []string, act action) error {
	logger := term.NewLogger(opts.verbose, false)
	ctx := logger.WithContext(context.Background())

	workingDir, err := os.Getwd()
	if err != nil {
		return eris.Wrap(err, "failed to retrieve the current working directory")
	}

	if opts.generate {
		if err = rules.WriteDefault(workingDir, opts.rulesFile); err != nil {
			return err
		}
		logger.Info().Msgf("saved %s", filepath.Join(workingDir, opts.rulesFile))
		return nil
	}

	// bare arguments can be directories, files or configuration names
	dirs, files, configs := sniff.SortArgs(args)
	dirs = append(opts.dirs, dirs...)
	files = append(opts.files, files...)
	configs = append(opts.configs, configs...)

	if len(dirs) == 0 && len(files) == 0 {
		dirs = []string{workingDir}
	}

	invoker := invoke.New()
	invoker.DryRun = opts.preview

	walkOpts := walker.Options{
		Recursive:      opts.recursive,
		Fatal:          opts.fatal,
		Docs:           opts.docs,
		Configurations: configs,
	}

	var bar *progressbar.ProgressBar
	if opts.recursive && !opts.verbose {
		bar = term.NewProgressBar("scanning")
		walkOpts.Progress = func(dir string) {
			bar.Describe(filepath.Base(dir))
			_ = bar.Add(1)
		}
	}

	resolver := rules.NewResolver(opts.rulesFile)
	summary := &invoke.Summary{}

	if act == actionClean || act == actionRebuild {
		w := walker.New(resolver, invoker, walkOpts)
		summary.Merge(w.Clean(ctx, dirs))
	}
	if act == actionBuild || act == actionRebuild {
		// rebuild needs a fresh walker so the clean pass's processed
		// markers don't suppress the build pass
		w := walker.New(resolver, invoker, walkOpts)
		summary.Merge(w.Build(ctx, dirs, files))
	}

	if bar != nil {
		bar.Finish()
	}

	report(summary, opts.verbose, act)
	return nil
}

func report(summary *invoke.Summary, verbose bool, act action) {
	exitCode = summary.Code()

	if exitCode != 0 {
		if act == actionClean {
			fmt.Fprintln(os.Stderr, "Errors detected in the clean.")
		} else {
			fmt.Fprintln(os.Stderr, "Errors detected in the build.")
		}
	} else if verbose && act != actionClean {
		fmt.Println("Build is successful!")
	}

	for _, outcome := range summary.Outcomes {
		if verbose || outcome.Failed() {
			fmt.Println(outcome.String())
		}
	}
}
