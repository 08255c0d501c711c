// Package sniff classifies directories and files into the native project
// kinds the invoker knows how to drive. Classification is pure: it looks at
// names, directory listings and the host OS, never at tool availability.
package sniff

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Kind enumerates the supported native project types.
type Kind int

const (
	Unknown Kind = iota
	VisualStudioSolution
	XcodeProject
	WatcomMakefile
	CodeBlocksProject
	CodeWarriorProject
	MakeMakefile
	NinjaFile
	Doxyfile
)

var kindNames = map[Kind]string{
	Unknown:              "unknown",
	VisualStudioSolution: "visual-studio-solution",
	XcodeProject:         "xcode-project",
	WatcomMakefile:       "watcom-makefile",
	CodeBlocksProject:    "codeblocks-project",
	CodeWarriorProject:   "codewarrior-project",
	MakeMakefile:         "make-makefile",
	NinjaFile:            "ninja-file",
	Doxyfile:             "doxygen-file",
}

func (k Kind) String() string {
	name, ok := kindNames[k]
	if !ok {
		return "unknown"
	}
	return name
}

// Project is one discovered native project file.
type Project struct {
	// Path is the absolute path of the project file. For Xcode this is the
	// .xcodeproj bundle directory.
	Path string
	// Kind is the detected project type.
	Kind Kind
	// Configuration is the requested build configuration, "all" by default.
	Configuration string
}

// pbxprojFile is the file an .xcodeproj bundle must contain to qualify.
const pbxprojFile = "project.pbxproj"

// Classify maps a single path to a project kind. hostOS follows
// runtime.GOOS values. Bare makefiles are only accepted on hosts where
// "make" is unambiguous, which excludes Windows.
func Classify(path, hostOS string) Kind {
	base := strings.ToLower(filepath.Base(path))

	if base == pbxprojFile || strings.HasSuffix(base, ".xcodeproj") {
		return XcodeProject
	}

	switch filepath.Ext(base) {
	case ".sln":
		return VisualStudioSolution
	case ".wmk":
		return WatcomMakefile
	case ".cbp", ".cdp":
		return CodeBlocksProject
	case ".mcp":
		return CodeWarriorProject
	case ".ninja":
		return NinjaFile
	}

	if base == "makefile" {
		if hostOS == "windows" {
			return Unknown
		}
		return MakeMakefile
	}

	if base == "doxyfile" {
		return Doxyfile
	}

	return Unknown
}

// ScanDir enumerates dir and returns one Project per qualifying entry, in
// the directory's enumeration order. Doxygen files are only reported when
// docs is set. An empty result is normal for directories that rely on
// hooks alone.
func ScanDir(dir, hostOS string, docs bool) ([]Project, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to scan %s", dir)
	}

	var projects []Project
	for _, entry := range entries {
		fullName := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			// only .xcodeproj bundles count among directories
			if !strings.HasSuffix(strings.ToLower(entry.Name()), ".xcodeproj") {
				continue
			}

			_, err := os.Stat(filepath.Join(fullName, pbxprojFile))
			if err != nil {
				continue
			}

			projects = append(projects, Project{
				Path:          fullName,
				Kind:          XcodeProject,
				Configuration: "all",
			})
			continue
		}

		kind := Classify(fullName, hostOS)
		if kind == Unknown || kind == XcodeProject {
			continue
		}
		if kind == Doxyfile && !docs {
			continue
		}

		projects = append(projects, Project{
			Path:          fullName,
			Kind:          kind,
			Configuration: "all",
		})
	}

	return projects, nil
}

// SortArgs splits bare command line arguments into directories, files and
// configuration names by inspecting the filesystem.
func SortArgs(args []string) (dirs, files, configurations []string) {
	for _, arg := range args {
		fi, err := os.Stat(arg)
		switch {
		case err == nil && fi.IsDir():
			dirs = append(dirs, arg)
		case err == nil:
			files = append(files, arg)
		default:
			configurations = append(configurations, arg)
		}
	}
	return dirs, files, configurations
}
