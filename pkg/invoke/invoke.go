// Package invoke runs the native build tool matching a sniffed project and
// normalizes the result into an Outcome. All invocations are synchronous;
// stdout and stderr of the child are captured into the outcome.
package invoke

import (
	"context"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"makeprojects/pkg/sniff"
)

// Runner executes one native tool and returns its exit code and combined
// output. The error return is reserved for failures to launch the tool at
// all.
type Runner func(ctx context.Context, dir string, argv []string) (int, string, error)

// Invoker dispatches sniffed projects to their native toolchains.
type Invoker struct {
	// HostOS follows runtime.GOOS values; it gates host-bound backends.
	HostOS string
	// DryRun logs the commands without executing them.
	DryRun bool
	// Run overrides the process launcher, used by tests.
	Run Runner
}

// New returns an Invoker for the current host.
func New() *Invoker {
	return &Invoker{HostOS: runtime.GOOS}
}

// command is one fully resolved native tool invocation.
type command struct {
	argv []string
	dir  string
	// translate maps a raw exit code to a diagnostic, when the toolchain
	// defines one (CodeWarrior linker codes).
	translate func(int) string
}

// Build invokes the project's toolchain for one configuration.
func (inv *Invoker) Build(ctx context.Context, project sniff.Project, configuration string) Outcome {
	return inv.invoke(ctx, project, configuration, false)
}

// Clean invokes the project's toolchain clean action. Toolchains without a
// scriptable clean (CodeWarrior, Doxygen) produce a skipped outcome.
func (inv *Invoker) Clean(ctx context.Context, project sniff.Project) Outcome {
	return inv.invoke(ctx, project, "clean", true)
}

func (inv *Invoker) invoke(ctx context.Context, project sniff.Project, configuration string, clean bool) Outcome {
	log := zerolog.Ctx(ctx)

	cmd, err := inv.resolve(project, configuration, clean)
	if err != nil {
		log.Error().Err(err).Msgf("cannot invoke %s", project.Path)
		return Outcome{
			Source:        project.Path,
			Configuration: configuration,
			Code:          ExitEnvironment,
			Output:        eris.ToString(err, false),
		}
	}
	if cmd == nil {
		return Skip(project.Path, configuration)
	}

	log.Info().Str("project", filepath.Base(project.Path)).Msg(strings.Join(cmd.argv, " "))
	if inv.DryRun {
		return Skip(project.Path, configuration)
	}

	run := inv.Run
	if run == nil {
		run = runNative
	}

	code, output, err := run(ctx, cmd.dir, cmd.argv)
	if err != nil {
		err = eris.Wrapf(ErrEnvironment, "failed to launch %s: %s", cmd.argv[0], err.Error())
		log.Error().Err(err).Msgf("cannot invoke %s", project.Path)
		return Outcome{
			Source:        project.Path,
			Configuration: configuration,
			Code:          ExitEnvironment,
			Output:        eris.ToString(err, false),
		}
	}

	if code != 0 && cmd.translate != nil {
		if msg := cmd.translate(code); msg != "" {
			output = strings.TrimRight(output+"\n"+msg, "\n")
		}
	}

	return Outcome{
		Source:        project.Path,
		Configuration: configuration,
		Code:          code,
		Output:        output,
	}
}

// resolve picks the tool argv for a project. A nil command with a nil
// error means the action does not apply and the step is skipped.
func (inv *Invoker) resolve(project sniff.Project, configuration string, clean bool) (*command, error) {
	dir := filepath.Dir(project.Path)

	switch project.Kind {
	case sniff.VisualStudioSolution:
		return inv.visualStudioCommand(project.Path, configuration, clean)

	case sniff.XcodeProject:
		if inv.HostOS != "darwin" {
			return nil, eris.Wrapf(ErrEnvironment, "%s requires a macOS host", project.Path)
		}
		argv := []string{"xcodebuild", "-project", project.Path}
		if configuration != "all" && !clean {
			argv = append(argv, "-configuration", configuration)
		}
		if clean {
			argv = append(argv, "clean")
		}
		return &command{argv: argv, dir: dir}, nil

	case sniff.WatcomMakefile:
		target := configuration
		if clean {
			target = "clean"
		}
		return &command{argv: []string{"wmake", "-e", "-h", "-f", project.Path, target}, dir: dir}, nil

	case sniff.CodeBlocksProject:
		argv := []string{"codeblocks", "--no-splash-screen"}
		if clean {
			argv = append(argv, "--clean")
		} else {
			argv = append(argv, "--build", "--target="+configuration)
		}
		argv = append(argv, project.Path)
		return &command{argv: argv, dir: dir}, nil

	case sniff.CodeWarriorProject:
		if clean {
			return nil, nil
		}
		return inv.codeWarriorCommand(project.Path, configuration)

	case sniff.MakeMakefile:
		if inv.HostOS == "windows" {
			return nil, eris.Wrapf(ErrEnvironment, "%s is not buildable on a Windows host", project.Path)
		}
		target := configuration
		if clean {
			target = "clean"
		}
		return &command{argv: []string{"make", "-f", project.Path, target}, dir: dir}, nil

	case sniff.NinjaFile:
		target := configuration
		if clean {
			target = "clean"
		}
		return &command{argv: []string{"ninja", "-f", project.Path, target}, dir: dir}, nil

	case sniff.Doxyfile:
		if clean {
			return nil, nil
		}
		return &command{argv: []string{"doxygen", filepath.Base(project.Path)}, dir: dir}, nil
	}

	return nil, eris.Wrapf(ErrConfiguration, "%s is not a supported project file", project.Path)
}

func runNative(ctx context.Context, dir string, argv []string) (int, string, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), string(output), nil
		}
		return 0, string(output), err
	}
	return 0, string(output), nil
}
