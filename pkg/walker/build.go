package walker

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"makeprojects/pkg/invoke"
	"makeprojects/pkg/rules"
	"makeprojects/pkg/sniff"
)

// buildDir processes one directory in pre-order: rules scripts (their
// dependencies first, then their hooks), sniffed project files, then the
// child directories. Returns true when the whole run must stop.
func (w *Walker) buildDir(ctx context.Context, dir string, depth int) bool {
	dir, err := checkDir(dir)
	if err != nil {
		return w.recordError(ctx, dir, err)
	}

	if w.wasProcessed(ctx, dir) {
		return false
	}
	w.visit(dir)

	chain, err := w.resolver.Chain(ctx, dir, rules.BuildPrefix)
	if err != nil {
		return w.recordError(ctx, dir, err)
	}

	for _, unit := range chain {
		if w.wasProcessed(ctx, unit.Path) {
			continue
		}
		if w.expandDeps(ctx, unit, unit.Build.Dependencies, false, depth) {
			return true
		}
		if w.runBuildHooks(ctx, unit, dir) {
			return true
		}
	}

	if processProjects(chain, rules.BuildPrefix) {
		if w.buildProjects(ctx, dir) {
			return true
		}
	}

	if w.opts.Recursive && !noRecurse(chain, rules.BuildPrefix) {
		children, err := subdirectories(dir)
		if err != nil {
			return w.recordError(ctx, dir, err)
		}
		for _, child := range children {
			if w.buildDir(ctx, child, depth) {
				return true
			}
		}
	}

	return false
}

// buildFile processes one explicit file argument: either a rules script or
// a single project file.
func (w *Walker) buildFile(ctx context.Context, file string, depth int) bool {
	file, err := filepath.Abs(file)
	if err != nil {
		return w.recordError(ctx, file, err)
	}

	if filepath.Base(file) == w.resolver.FileName {
		if w.wasProcessed(ctx, file) {
			return false
		}

		unit, err := w.resolver.Load(ctx, filepath.Dir(file))
		if err != nil {
			return w.recordError(ctx, file, err)
		}
		if unit == nil {
			return w.recordError(ctx, file, eris.Errorf("%s does not exist", file))
		}

		if w.expandDeps(ctx, unit, unit.Build.Dependencies, false, depth) {
			return true
		}
		return w.runBuildHooks(ctx, unit, unit.Dir)
	}

	kind := sniff.Classify(file, w.invoker.HostOS)
	if kind == sniff.Unknown {
		return w.recordError(ctx, file, eris.Errorf("%s is not a supported project file", file))
	}

	if w.wasProcessed(ctx, file) {
		return false
	}
	return w.invokeProject(ctx, sniff.Project{Path: file, Kind: kind, Configuration: "all"})
}

// buildProjects invokes every project file sniffed in dir.
func (w *Walker) buildProjects(ctx context.Context, dir string) bool {
	projects, err := sniff.ScanDir(dir, w.invoker.HostOS, w.opts.Docs)
	if err != nil {
		return w.recordError(ctx, dir, err)
	}

	for _, project := range projects {
		if w.wasProcessed(ctx, project.Path) {
			continue
		}
		if w.invokeProject(ctx, project) {
			return true
		}
	}
	return false
}

func (w *Walker) invokeProject(ctx context.Context, project sniff.Project) bool {
	for _, configuration := range w.opts.Configurations {
		if w.record(ctx, w.invoker.Build(ctx, project, configuration)) {
			return true
		}
	}
	return false
}

// runBuildHooks runs prebuild, build and postbuild for one script. A
// failing prebuild skips the build, but postbuild runs regardless so
// cleanup still happens.
func (w *Walker) runBuildHooks(ctx context.Context, unit *rules.Rules, workingDir string) bool {
	for _, configuration := range w.opts.Configurations {
		preFailed, stop := w.runHook(ctx, unit, rules.HookPrebuild, workingDir, configuration)
		if stop {
			return true
		}

		if !preFailed {
			if _, stop = w.runHook(ctx, unit, rules.HookBuild, workingDir, configuration); stop {
				return true
			}
		}

		if _, stop = w.runHook(ctx, unit, rules.HookPostbuild, workingDir, configuration); stop {
			return true
		}
	}
	return false
}

// runHook calls one hook if the script declares it and records its
// outcome. The first result reports whether the hook failed.
func (w *Walker) runHook(ctx context.Context, unit *rules.Rules, name, workingDir, configuration string) (bool, bool) {
	if !unit.HasHook(name) {
		return false, false
	}

	source := unit.Path + ":" + name
	code, skipped, err := unit.CallHook(ctx, name, workingDir, configuration)
	if err != nil {
		return true, w.recordError(ctx, source, err)
	}
	if skipped {
		w.summary.Add(invoke.Skip(source, configuration))
		return false, false
	}

	stop := w.record(ctx, invoke.Outcome{
		Source:        source,
		Configuration: configuration,
		Code:          code,
	})
	return code != 0, stop
}

// expandDeps processes a dependency list in declaration order. Clean
// dependency lists accept directories only. A missing entry or a failing
// dependency halts this list's expansion but not the run.
func (w *Walker) expandDeps(ctx context.Context, unit *rules.Rules, deps []string, clean bool, depth int) bool {
	if len(deps) == 0 {
		return false
	}

	if depth >= maxDepth {
		return w.recordError(ctx, unit.Path,
			eris.Errorf("dependency chain exceeds %d levels, check for circular dependencies", maxDepth))
	}

	for _, item := range deps {
		target := item
		if !filepath.IsAbs(target) {
			target = filepath.Join(unit.Dir, target)
		}

		fi, err := os.Stat(target)
		if err != nil {
			return w.recordError(ctx, unit.Path, eris.Errorf("dependency %s does not exist", target))
		}

		failuresBefore := len(w.summary.Failures())

		if fi.IsDir() {
			var stop bool
			if clean {
				stop = w.cleanDir(ctx, target, depth+1)
			} else {
				stop = w.buildDir(ctx, target, depth+1)
			}
			if stop {
				return true
			}
		} else {
			if clean {
				return w.recordError(ctx, unit.Path,
					eris.Errorf("dependency %s must be a directory", target))
			}
			if w.buildFile(ctx, target, depth+1) {
				return true
			}
		}

		if len(w.summary.Failures()) > failuresBefore {
			// a failing dependency halts the rest of this list
			return false
		}
	}
	return false
}
