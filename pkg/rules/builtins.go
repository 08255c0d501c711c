package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

var defaultExecHandler = interp.DefaultExecHandler(2)
var defaultOpenHandler = interp.DefaultOpenHandler()

func openHandler(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if path == "/dev/null" {
		path = os.DevNull
	}

	return defaultOpenHandler(ctx, path, flag, perm)
}

func resolvePath(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	base := ""
	sctx := scriptContext(thread)

	for _, kv := range kwargs {
		key := kv[0].(starlark.String).GoString()

		if key != "base" {
			return nil, eris.Errorf("unexpected keyword argument %s", key)
		}

		switch value := kv[1].(type) {
		case starlark.String:
			base = value.GoString()
		case scriptPath:
			base = string(value)
		default:
			return nil, eris.Errorf("invalid type %s for keyword base, expected string or path", kv[1].Type())
		}

		base = normalizePath(sctx, base)
	}

	if len(args) < 1 {
		return nil, eris.New("expects at least one argument")
	}

	parts := make([]string, len(args))
	for idx, path := range args {
		switch value := path.(type) {
		case starlark.String:
			parts[idx] = value.GoString()
		default:
			return nil, eris.Errorf("only accepts string arguments but argument %d was a %s", idx, path.Type())
		}
	}

	normPath := normalizePath(sctx, parts...)
	if base != "" {
		var err error
		normPath, err = filepath.Rel(base, normPath)
		if err != nil {
			return nil, err
		}
	}

	return scriptPath(normPath), nil
}

func starInfo(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var message string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &message)
	if err != nil {
		return nil, err
	}

	info(thread, "%s", message)
	return starlark.None, nil
}

func starWarn(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var message string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &message)
	if err != nil {
		return nil, err
	}

	warn(thread, "%s", message)
	return starlark.None, nil
}

func starError(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var message string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &message)
	if err != nil {
		return nil, err
	}

	return nil, eris.New(message)
}

func getenv(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var key string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &key)
	if err != nil {
		return nil, err
	}

	envOverrides := scriptContext(thread).envOverrides
	value, ok := envOverrides[key]
	if !ok {
		value = os.Getenv(key)
	}

	return starlark.String(value), nil
}

func setenv(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var key string
	var value string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 2, &key, &value)
	if err != nil {
		return nil, err
	}

	envOverrides := scriptContext(thread).envOverrides
	envOverrides[key] = value

	return starlark.True, nil
}

func prependPathDir(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pathDir string

	if len(args) != 1 {
		return nil, eris.Errorf("got %d arguments, want 1", len(args))
	}

	switch value := args[0].(type) {
	case starlark.String:
		pathDir = value.GoString()
	case scriptPath:
		pathDir = string(value)
	default:
		return nil, eris.Errorf("for parameter 1: got %s, want path or string", args[0].Type())
	}

	sctx := scriptContext(thread)
	path, ok := sctx.envOverrides["PATH"]
	if !ok {
		path = os.Getenv("PATH")
	}

	sctx.envOverrides["PATH"] = normalizePath(sctx, pathDir) + string(os.PathListSeparator) + path

	return starlark.String(sctx.envOverrides["PATH"]), nil
}

func readYaml(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var yamlFile string
	var yamlKey string
	var defaultValue starlark.Value

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 2, &yamlFile, &yamlKey, &defaultValue)
	if err != nil {
		return nil, err
	}

	sctx := scriptContext(thread)
	yamlFile = normalizePath(sctx, yamlFile)

	doc, loaded := sctx.yamlCache[yamlFile]
	if !loaded {
		content, err := ioutil.ReadFile(yamlFile)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to open file %s", yamlFile)
		}

		err = yaml.Unmarshal(content, &doc)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to parse file %s", yamlFile)
		}

		sctx.yamlCache[yamlFile] = doc
	}

	// parse the key
	value := reflect.ValueOf(doc)
	for _, key := range strings.Split(yamlKey, ".") {
		switch value.Kind() {
		case reflect.Map:
			value = value.MapIndex(reflect.ValueOf(key))
		case reflect.Slice:
			idx, err := strconv.Atoi(key)
			if err != nil || idx >= value.Len() {
				value = reflect.ValueOf(nil)
				goto endLoop
			}
			value = value.Index(idx)
		case reflect.Interface:
			value = value.Elem()
		case reflect.Invalid:
			goto endLoop
		default:
			return nil, eris.Errorf("encountered unexpected value of kind %v in YAML document", value.Kind())
		}
	}

endLoop:
	if value.Kind() == reflect.Invalid {
		return defaultValue, nil
	}
	return interfaceToStarlark(value.Interface())
}

func starIsdir(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var dirPath string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &dirPath)
	if err != nil {
		return nil, err
	}

	dirPath = normalizePath(scriptContext(thread), dirPath)
	fi, err := os.Stat(dirPath)
	return starlark.Bool(err == nil && fi.IsDir()), nil
}

func starIsfile(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var filePath string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &filePath)
	if err != nil {
		return nil, err
	}

	filePath = normalizePath(scriptContext(thread), filePath)
	fi, err := os.Stat(filePath)
	return starlark.Bool(err == nil && fi.Mode().IsRegular()), nil
}

func deleteFile(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var filePath string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &filePath)
	if err != nil {
		return nil, err
	}

	filePath = normalizePath(scriptContext(thread), filePath)
	err = os.Remove(filePath)
	if err != nil && !eris.Is(err, os.ErrNotExist) {
		return nil, eris.Wrapf(err, "failed to delete %s", filePath)
	}

	return starlark.Bool(err == nil), nil
}

func deleteFolder(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var dirPath string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &dirPath)
	if err != nil {
		return nil, err
	}

	sctx := scriptContext(thread)
	dirPath = normalizePath(sctx, dirPath)
	_, statErr := os.Stat(dirPath)

	err = os.RemoveAll(dirPath)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to delete %s", dirPath)
	}

	return starlark.Bool(statErr == nil), nil
}

func starExec(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var command starlark.Value
	var outputFormat string
	var showError bool

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "command", &command, "format?", &outputFormat, "show_error?", &showError)
	if err != nil {
		return nil, err
	}

	if outputFormat == "" {
		outputFormat = "text"
	}

	if outputFormat != "text" && outputFormat != "json" {
		return nil, eris.Errorf("unsupported format %s", outputFormat)
	}

	var shellCmd []syntax.Node
	parser := syntax.NewParser()
	sctx := scriptContext(thread)
	base := filepath.Dir(sctx.filepath)

	switch command := command.(type) {
	case starlark.String:
		result, err := parser.Parse(strings.NewReader(command.GoString()), fn.Name())
		if err != nil {
			return nil, eris.Wrapf(err, "failed to parse command %s", command.GoString())
		}

		shellCmd = make([]syntax.Node, len(result.Stmts))
		for idx, stmt := range result.Stmts {
			shellCmd[idx] = stmt
		}
	case starlark.Tuple:
		expr, err := commandToCall(command, parser, base)
		if err != nil {
			return nil, err
		}

		shellCmd = []syntax.Node{expr}
	default:
		return nil, eris.Errorf("unexpected type %s for command parameter, only strings and tuples are valid", command.Type())
	}

	outputBuffer := strings.Builder{}
	errOut := os.Stderr

	if !showError {
		errOut = nil
	}

	runner, err := interp.New(
		interp.Dir(base),
		interp.Env(expand.ListEnviron(getEnvVars(sctx)...)),
		interp.ExecHandler(defaultExecHandler),
		interp.OpenHandler(openHandler),
		interp.StdIO(nil, &outputBuffer, errOut),
		interp.Params("-e"),
	)
	if err != nil {
		return nil, eris.Wrap(err, "failed to initialize runner")
	}

	for _, cmd := range shellCmd {
		err := runner.Run(sctx.ctx, cmd)
		if err != nil {
			if showError {
				zerolog.Ctx(sctx.ctx).Error().Err(err).Msg("shell error")
			}
			return starlark.False, nil
		}
	}

	if outputFormat == "json" {
		var decoded interface{}
		err = json.Unmarshal([]byte(outputBuffer.String()), &decoded)
		if err != nil {
			return nil, eris.Wrap(err, "failed to parse command output")
		}

		return interfaceToStarlark(decoded)
	}

	return starlark.String(outputBuffer.String()), nil
}

func starLoadVcvars(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	arch := "amd64"

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 0, &arch)
	if err != nil {
		return nil, err
	}

	if runtime.GOOS != "windows" {
		return starlark.True, nil
	}

	sctx := scriptContext(thread)

	vsWherePath := "C:\\Program Files (x86)\\Microsoft Visual Studio\\Installer\\vswhere.exe"
	cmd := exec.Command(vsWherePath, "-property", "installationPath", "-latest")
	output, err := cmd.Output()
	if err != nil {
		return nil, eris.Wrapf(err, "failed to run %s", vsWherePath)
	}

	vsPath := strings.Trim(string(output), " \r\n")
	if vsPath == "" {
		return nil, eris.New("no Visual Studio installation found")
	}

	fi, err := os.Stat(vsPath)
	if err != nil || !fi.IsDir() {
		return nil, eris.Errorf("the detected VS installation path %s does not exist", vsPath)
	}

	vcvarsall := filepath.Join(vsPath, "VC", "Auxiliary", "Build", "vcvarsall.bat")
	_, err = os.Stat(vcvarsall)
	if err != nil {
		return nil, eris.Wrap(err, "could not find vcvarsall.bat")
	}

	tmpDir := filepath.Join(os.TempDir(), fmt.Sprintf("mprules-%d", rand.Int()))
	err = os.Mkdir(tmpDir, 0700)
	if err != nil {
		return nil, eris.Wrap(err, "could not create temporary directory")
	}
	defer os.RemoveAll(tmpDir)

	script := filepath.Join(tmpDir, "vchelper.bat")
	err = ioutil.WriteFile(script, []byte(`@echo off
call "`+vcvarsall+`" %*
echo MP_PATH=%PATH%
echo MP_INCLUDE=%INCLUDE%
echo MP_LIBPATH=%LIBPATH%
echo MP_LIB=%LIB%
`), 0700)
	if err != nil {
		return nil, eris.Wrap(err, "failed to write helper script")
	}

	cmd = exec.Command("cmd", "/C", script, arch)
	cmd.Env = getEnvVars(sctx)
	output, err = cmd.Output()
	if err != nil {
		return nil, eris.Wrap(err, "failed to run helper script")
	}

	for _, line := range strings.Split(string(output), "\r\n") {
		if strings.HasPrefix(line, "MP_") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) < 2 {
				zerolog.Ctx(sctx.ctx).Error().Msgf("vchelper produced malformed line %s", line)
			} else {
				sctx.envOverrides[parts[0][3:]] = parts[1]
			}
		}
	}

	return starlark.True, nil
}
