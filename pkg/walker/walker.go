// Package walker drives a build or clean run over a directory tree. It
// resolves the rules scripts that apply to each directory, expands their
// dependency lists in declaration order, runs the declared hooks and hands
// sniffed project files to the invoker, aggregating every step into one
// summary.
package walker

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"makeprojects/pkg/invoke"
	"makeprojects/pkg/rules"
)

// maxDepth caps dependency expansion so a self-referential dependency
// chain fails instead of looping.
const maxDepth = 64

// Options controls one run.
type Options struct {
	// Recursive descends into child directories.
	Recursive bool
	// Fatal stops the whole run at the first failing outcome.
	Fatal bool
	// Docs treats doxygen files as buildable projects.
	Docs bool
	// Configurations to build, ["all"] if empty.
	Configurations []string
	// Progress, when set, is called once per visited directory.
	Progress func(dir string)
}

// Walker holds the state of one run.
type Walker struct {
	resolver *rules.Resolver
	invoker  *invoke.Invoker
	opts     Options

	processed map[string]bool
	summary   *invoke.Summary
}

// New creates a Walker. Passing nil for resolver or invoker picks the
// defaults for the current host.
func New(resolver *rules.Resolver, invoker *invoke.Invoker, opts Options) *Walker {
	if resolver == nil {
		resolver = rules.NewResolver("")
	}
	if invoker == nil {
		invoker = invoke.New()
	}
	if len(opts.Configurations) == 0 {
		opts.Configurations = []string{"all"}
	}

	return &Walker{
		resolver:  resolver,
		invoker:   invoker,
		opts:      opts,
		processed: make(map[string]bool),
		summary:   &invoke.Summary{},
	}
}

// Summary returns the outcomes recorded so far.
func (w *Walker) Summary() *invoke.Summary {
	return w.summary
}

// Build processes the given files first, then the given directories, in
// pre-order. The returned summary is the same one Summary exposes.
func (w *Walker) Build(ctx context.Context, dirs, files []string) *invoke.Summary {
	for _, file := range files {
		if w.buildFile(ctx, file, 0) {
			return w.summary
		}
	}
	for _, dir := range dirs {
		if w.buildDir(ctx, dir, 0) {
			return w.summary
		}
	}
	return w.summary
}

// Clean processes the given directories. Each directory's own hooks run
// first against a child snapshot taken beforehand, so hooks that delete
// subdirectories simply cause those children to be skipped.
func (w *Walker) Clean(ctx context.Context, dirs []string) *invoke.Summary {
	for _, dir := range dirs {
		if w.cleanDir(ctx, dir, 0) {
			return w.summary
		}
	}
	return w.summary
}

// record adds an outcome and reports whether the run must stop.
func (w *Walker) record(ctx context.Context, outcome invoke.Outcome) bool {
	w.summary.Add(outcome)
	if outcome.Failed() {
		zerolog.Ctx(ctx).Error().
			Int("code", outcome.Code).
			Msgf("failed: %s", outcome.Source)
		return w.opts.Fatal
	}
	return false
}

// recordError turns an error into a failing configuration outcome.
func (w *Walker) recordError(ctx context.Context, source string, err error) bool {
	err = eris.Wrap(invoke.ErrConfiguration, eris.ToString(err, false))
	return w.record(ctx, invoke.Outcome{
		Source: source,
		Code:   invoke.ExitConfiguration,
		Output: eris.ToString(err, false),
	})
}

// wasProcessed marks a path and reports whether it had been seen before.
func (w *Walker) wasProcessed(ctx context.Context, path string) bool {
	if w.processed[path] {
		zerolog.Ctx(ctx).Debug().Msgf("%s was already processed", path)
		return true
	}
	w.processed[path] = true
	return false
}

func (w *Walker) visit(dir string) {
	if w.opts.Progress != nil {
		w.opts.Progress(dir)
	}
}

// noRecurse reports whether any script in the chain disables recursion.
func noRecurse(chain []*rules.Rules, prefix string) bool {
	for _, unit := range chain {
		if unit.Flags(prefix).NoRecurse {
			return true
		}
	}
	return false
}

// processProjects reports whether every script in the chain leaves project
// file scanning enabled. With no scripts at all it stays enabled.
func processProjects(chain []*rules.Rules, prefix string) bool {
	for _, unit := range chain {
		if !unit.Flags(prefix).ProcessProjectFiles {
			return false
		}
	}
	return true
}

// subdirectories lists the child directories of dir, skipping .xcodeproj
// bundles since those are project files, not folders to traverse.
func subdirectories(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) == ".xcodeproj" {
			continue
		}
		dirs = append(dirs, filepath.Join(dir, entry.Name()))
	}
	return dirs, nil
}

func checkDir(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	fi, err := os.Stat(dir)
	if err != nil {
		return dir, err
	}
	if !fi.IsDir() {
		return dir, eris.Errorf("%s is not a directory", dir)
	}
	return dir, nil
}
