package rules

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"runtime"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
)

var hookNames = []string{HookPrebuild, HookBuild, HookPostbuild, HookClean}

// LoadScript executes the rules script at filename and collects its flag
// globals and hook functions. Any malformed declaration (wrong type for a
// flag, a non-function hook, a non-list dependency value) is an error.
func LoadScript(ctx context.Context, filename string) (*Rules, error) {
	filename, err := filepath.Abs(filename)
	if err != nil {
		return nil, err
	}

	sctx := &scriptCtx{
		ctx:          ctx,
		filepath:     filename,
		rootDir:      filepath.Dir(filename),
		envOverrides: make(map[string]string),
		yamlCache:    make(map[string]interface{}),
	}

	builtins := starlark.StringDict{
		"OS":            starlark.String(runtime.GOOS),
		"ARCH":          starlark.String(runtime.GOARCH),
		"info":          starlark.NewBuiltin("info", starInfo),
		"warn":          starlark.NewBuiltin("warn", starWarn),
		"error":         starlark.NewBuiltin("error", starError),
		"resolve_path":  starlark.NewBuiltin("resolve_path", resolvePath),
		"getenv":        starlark.NewBuiltin("getenv", getenv),
		"setenv":        starlark.NewBuiltin("setenv", setenv),
		"prepend_path":  starlark.NewBuiltin("prepend_path", prependPathDir),
		"read_yaml":     starlark.NewBuiltin("read_yaml", readYaml),
		"isdir":         starlark.NewBuiltin("isdir", starIsdir),
		"isfile":        starlark.NewBuiltin("isfile", starIsfile),
		"delete_file":   starlark.NewBuiltin("delete_file", deleteFile),
		"delete_folder": starlark.NewBuiltin("delete_folder", deleteFolder),
		"execute":       starlark.NewBuiltin("execute", starExec),
		"load_vcvars":   starlark.NewBuiltin("load_vcvars", starLoadVcvars),
	}

	thread := &starlark.Thread{
		Name: "build_rules",
		Print: func(thread *starlark.Thread, msg string) {
			zerolog.Ctx(ctx).Info().Str("thread", thread.Name).Msg(msg)
		},
	}
	thread.SetLocal(scriptCtxKey, sctx)

	script, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read %s", filename)
	}

	globals, err := starlark.ExecFile(thread, simplifyPath(sctx, filename), script, builtins)
	if err != nil {
		if evalError, ok := err.(*starlark.EvalError); ok {
			return nil, eris.Errorf("failed to execute %s:\n%s", simplifyPath(sctx, filename), evalError.Backtrace())
		}
		return nil, eris.Wrapf(err, "failed to execute %s", filename)
	}

	rules := &Rules{
		Path:  filename,
		Dir:   filepath.Dir(filename),
		hooks: make(map[string]starlark.Callable),
		sctx:  sctx,
	}

	rules.Build, err = extractFlags(globals, BuildPrefix)
	if err != nil {
		return nil, eris.Wrapf(err, "in %s", filename)
	}

	rules.Clean, err = extractFlags(globals, CleanPrefix)
	if err != nil {
		return nil, eris.Wrapf(err, "in %s", filename)
	}

	for _, name := range hookNames {
		value, ok := globals[name]
		if !ok {
			continue
		}

		callable, ok := value.(starlark.Callable)
		if !ok {
			return nil, eris.Errorf("%s declares %s but it is a %s, not a function", filename, name, value.Type())
		}
		rules.hooks[name] = callable
	}

	return rules, nil
}

func extractFlags(globals starlark.StringDict, prefix string) (ToolFlags, error) {
	flags := ToolFlags{ProcessProjectFiles: true}
	var err error

	// GENERIC and CONTINUE have no bare fallback, the rest do.
	if flags.Generic, err = boolGlobal(globals, prefix+"_GENERIC", "", false); err != nil {
		return flags, err
	}
	if flags.Continue, err = boolGlobal(globals, prefix+"_CONTINUE", "", false); err != nil {
		return flags, err
	}
	if flags.NoRecurse, err = boolGlobal(globals, prefix+"_NO_RECURSE", "NO_RECURSE", false); err != nil {
		return flags, err
	}
	if flags.ProcessProjectFiles, err = boolGlobal(globals,
		prefix+"_PROCESS_PROJECT_FILES", "PROCESS_PROJECT_FILES", true); err != nil {
		return flags, err
	}

	flags.Dependencies, err = listGlobal(globals, prefix+"_DEPENDENCIES", "DEPENDENCIES")
	return flags, err
}

func boolGlobal(globals starlark.StringDict, name, fallback string, def bool) (bool, error) {
	value, ok := globals[name]
	if !ok && fallback != "" {
		value, ok = globals[fallback]
		name = fallback
	}
	if !ok {
		return def, nil
	}

	b, ok := value.(starlark.Bool)
	if !ok {
		return def, eris.Errorf("%s must be a bool, found %s", name, value.Type())
	}
	return bool(b), nil
}

func listGlobal(globals starlark.StringDict, name, fallback string) ([]string, error) {
	value, ok := globals[name]
	if !ok {
		value, ok = globals[fallback]
		name = fallback
	}
	if !ok {
		return nil, nil
	}

	iterable, ok := value.(starlarkIterable)
	if !ok {
		return nil, eris.Errorf("%s must be a list of strings, found %s", name, value.Type())
	}
	return iterableToStrings(iterable, name)
}
