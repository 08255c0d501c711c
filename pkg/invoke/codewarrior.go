package invoke

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Exit codes reported by the CodeWarrior IDE, indexed by code. The IDE
// only prints a number, so the text is reconstructed here.
var codeWarriorErrors = []string{
	"",
	"error opening file",
	"project not open",
	"IDE is already building",
	"invalid target name (for /t flag)",
	"error changing current target",
	"error removing objects",
	"build was cancelled",
	"build failed",
	"process aborted",
	"error importing project",
	"error executing debug script",
	"attempted use of /d together with /b and/or /r",
}

// codeWarriorError translates a raw IDE exit code into its diagnostic, or
// returns an empty string for codes outside the table.
func codeWarriorError(code int) string {
	if code > 0 && code < len(codeWarriorErrors) {
		return codeWarriorErrors[code]
	}
	return ""
}

// Environment variables the CodeWarrior installers set, checked in order.
var codeWarriorFolders = []string{
	"CWFolder",        // Windows
	"CWFOLDER_RVL",    // Nintendo Wii
	"CWFOLDER_NITRO",  // Nintendo DS
	"CWFOLDER_TWL",    // Nintendo DSi
}

func (inv *Invoker) codeWarriorCommand(path, configuration string) (*command, error) {
	dir := filepath.Dir(path)

	switch inv.HostOS {
	case "windows":
		for _, envName := range codeWarriorFolders {
			cwFolder := os.Getenv(envName)
			if cwFolder == "" {
				continue
			}

			// CmdIDE would be preferred but CodeWarrior 9.4 dies when its
			// own path contains a space, so the IDE binary is used.
			ide := filepath.Join(cwFolder, "Bin", "IDE.exe")
			argv := []string{ide, path, "/t", configuration, "/s", "/c", "/q", "/b"}
			return &command{argv: argv, dir: dir, translate: codeWarriorError}, nil
		}
		return nil, eris.Wrapf(ErrEnvironment, "CodeWarrior is not installed for %s", path)

	case "darwin":
		errFile := filepath.Join(dir, "temp",
			trimExt(filepath.Base(path))+"-"+configuration+".err")
		argv := []string{"cmdide", "-proj", "-bcwef", errFile,
			"-z", configuration, path}
		return &command{argv: argv, dir: dir, translate: codeWarriorError}, nil
	}

	return nil, eris.Wrapf(ErrEnvironment, "CodeWarrior projects cannot be built on this host (%s)", inv.HostOS)
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
