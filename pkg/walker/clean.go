package walker

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"makeprojects/pkg/rules"
	"makeprojects/pkg/sniff"
)

// cleanDir processes one directory: clean dependencies, clean hooks,
// project file clean actions, then the children. The child list is
// snapshotted before any hook runs, so hooks that delete entire
// subdirectories just cause those children to be skipped on recursion.
func (w *Walker) cleanDir(ctx context.Context, dir string, depth int) bool {
	dir, err := checkDir(dir)
	if err != nil {
		return w.recordError(ctx, dir, err)
	}

	if w.wasProcessed(ctx, dir) {
		return false
	}
	w.visit(dir)

	chain, err := w.resolver.Chain(ctx, dir, rules.CleanPrefix)
	if err != nil {
		return w.recordError(ctx, dir, err)
	}

	var children []string
	if w.opts.Recursive && !noRecurse(chain, rules.CleanPrefix) {
		if children, err = subdirectories(dir); err != nil {
			return w.recordError(ctx, dir, err)
		}
	}

	for _, unit := range chain {
		if w.wasProcessed(ctx, unit.Path) {
			continue
		}
		if w.expandDeps(ctx, unit, unit.Clean.Dependencies, true, depth) {
			return true
		}
		if _, stop := w.runHook(ctx, unit, rules.HookClean, dir, ""); stop {
			return true
		}
	}

	if processProjects(chain, rules.CleanPrefix) {
		if w.cleanProjects(ctx, dir) {
			return true
		}
	}

	for _, child := range children {
		fi, err := os.Stat(child)
		if err != nil || !fi.IsDir() {
			zerolog.Ctx(ctx).Debug().Msgf("%s was removed by a clean hook", child)
			continue
		}
		if w.cleanDir(ctx, child, depth) {
			return true
		}
	}

	return false
}

// cleanProjects invokes the clean action of every project file sniffed in
// dir. Doxygen output is never cleaned, so docs stays off here.
func (w *Walker) cleanProjects(ctx context.Context, dir string) bool {
	if _, err := os.Stat(dir); err != nil {
		// a hook higher up the chain deleted this directory
		return false
	}

	projects, err := sniff.ScanDir(dir, w.invoker.HostOS, false)
	if err != nil {
		return w.recordError(ctx, dir, err)
	}

	for _, project := range projects {
		if w.wasProcessed(ctx, project.Path) {
			continue
		}
		if w.record(ctx, w.invoker.Clean(ctx, project)) {
			return true
		}
	}
	return false
}
