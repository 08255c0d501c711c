package rules

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	starsyntax "go.starlark.net/syntax"
)

// Tool prefixes used to select the flag globals that apply to a run.
const (
	BuildPrefix = "BUILDME"
	CleanPrefix = "CLEANME"
)

// Hook names a script may declare.
const (
	HookPrebuild  = "prebuild"
	HookBuild     = "build"
	HookPostbuild = "postbuild"
	HookClean     = "clean"
)

// ToolFlags holds the flag globals of one script as seen by one tool
// (buildme or cleanme).
type ToolFlags struct {
	// Generic extends this script's effect to descendant directories.
	Generic bool
	// Continue keeps the upward search going after this script was handled.
	Continue bool
	// NoRecurse stops recursive traversal below this script's directory.
	NoRecurse bool
	// ProcessProjectFiles enables sniffing for native project files.
	ProcessProjectFiles bool
	// Dependencies are processed, in declaration order, before this
	// script's own directory.
	Dependencies []string
}

// Rules is one loaded build_rules.star script.
type Rules struct {
	// Path is the absolute path of the script file.
	Path string
	// Dir is the directory the script resides in.
	Dir string

	// Build and Clean are the flag views for the two tools.
	Build ToolFlags
	Clean ToolFlags

	hooks map[string]starlark.Callable
	sctx  *scriptCtx
}

// Flags returns the flag view for the given tool prefix.
func (r *Rules) Flags(prefix string) ToolFlags {
	if prefix == CleanPrefix {
		return r.Clean
	}
	return r.Build
}

// HasHook reports whether the script declared the named hook.
func (r *Rules) HasHook(name string) bool {
	_, ok := r.hooks[name]
	return ok
}

// CallHook invokes the named hook with the given working directory and, for
// the build-side hooks, the configuration name. The skipped result is true
// when the script did not declare the hook or the hook returned None.
func (r *Rules) CallHook(ctx context.Context, name, workingDir, configuration string) (int, bool, error) {
	fn, ok := r.hooks[name]
	if !ok {
		return 0, true, nil
	}

	r.sctx.ctx = ctx
	thread := &starlark.Thread{
		Name: name,
		Print: func(thread *starlark.Thread, msg string) {
			zerolog.Ctx(ctx).Info().Str("thread", thread.Name).Msg(msg)
		},
	}
	thread.SetLocal(scriptCtxKey, r.sctx)

	args := starlark.Tuple{starlark.String(workingDir)}
	if name != HookClean {
		args = append(args, starlark.String(configuration))
	}

	value, err := starlark.Call(thread, fn, args, nil)
	if err != nil {
		if evalError, ok := err.(*starlark.EvalError); ok {
			return 0, false, eris.New(evalError.Backtrace())
		}
		return 0, false, eris.Wrapf(err, "failed %s hook in %s", name, r.Path)
	}

	switch value := value.(type) {
	case starlark.NoneType:
		return 0, true, nil
	case starlark.Int:
		code, err := starlark.AsInt32(value)
		if err != nil {
			return 0, false, eris.Wrapf(err, "%s hook in %s", name, r.Path)
		}
		return code, false, nil
	default:
		return 0, false, eris.Errorf(
			"%s hook in %s returned %s, expected None or an int", name, r.Path, value.Type())
	}
}

// Path is exposed to scripts as the result of resolve_path. It behaves like
// a string but keeps its identity so command builders can make it relative
// to the working directory.
type scriptPath string

func (p scriptPath) String() string {
	return starlark.String(p).String()
}

func (p scriptPath) Type() string {
	return "path"
}

func (p scriptPath) Freeze() {}

func (p scriptPath) Truth() starlark.Bool {
	return p != ""
}

func (p scriptPath) Hash() (uint32, error) {
	return starlark.String(p).Hash()
}

func (p scriptPath) CompareSameType(op starsyntax.Token, y_ starlark.Value, depth int) (bool, error) {
	y := y_.(scriptPath)

	switch op {
	case starsyntax.EQL:
		return p == y, nil
	case starsyntax.NEQ:
		return p != y, nil
	case starsyntax.LT:
		return p < y, nil
	case starsyntax.LE:
		return p <= y, nil
	case starsyntax.GT:
		return p > y, nil
	case starsyntax.GE:
		return p >= y, nil
	}

	return false, eris.Errorf("unknown operator %v", op)
}

func (p scriptPath) Index(i int) starlark.Value {
	return starlark.String(p[i])
}

func (p scriptPath) Len() int {
	return len(p)
}

func (p scriptPath) Slice(start, end, step int) starlark.Value {
	return starlark.String(p).Slice(start, end, step)
}

// scriptCtx carries the per-script state the builtins need.
type scriptCtx struct {
	ctx          context.Context
	envOverrides map[string]string
	yamlCache    map[string]interface{}
	filepath     string
	rootDir      string
}

const scriptCtxKey = "rulesScriptCtx"

func scriptContext(thread *starlark.Thread) *scriptCtx {
	return thread.Local(scriptCtxKey).(*scriptCtx)
}

func (s *scriptCtx) logAt(thread *starlark.Thread) (string, string) {
	pos := thread.CallFrame(1).Pos
	return simplifyPath(s, s.filepath), fmt.Sprintf("%d:%d", pos.Line, pos.Col)
}

func info(thread *starlark.Thread, msg string, args ...interface{}) {
	sctx := scriptContext(thread)
	file, pos := sctx.logAt(thread)
	zerolog.Ctx(sctx.ctx).Info().Msgf("%s:%s: %s", file, pos, fmt.Sprintf(msg, args...))
}

func warn(thread *starlark.Thread, msg string, args ...interface{}) {
	sctx := scriptContext(thread)
	file, pos := sctx.logAt(thread)
	zerolog.Ctx(sctx.ctx).Warn().Msgf("%s:%s: %s", file, pos, fmt.Sprintf(msg, args...))
}

func normalizeDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", eris.Wrapf(err, "failed to resolve %s", path)
	}
	return filepath.Clean(abs), nil
}
