package invoke

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Solution format markers map to the Visual Studio year needed to build
// them. Format version 12.00 is shared between 2012 and later releases, so
// those solutions carry a second "# Visual Studio ..." marker.
var vsVersionYears = map[string]int{
	"2012": 2012,
	"2013": 2013,
	"14":   2015,
	"15":   2017,
	"16":   2019,
	"17":   2022,
}

var vsOldVersionYears = map[string]int{
	"8.00":  2003,
	"9.00":  2005,
	"10.00": 2008,
	"11.00": 2010,
	"12.00": 2012,
}

// COMNTOOLS environment variables published by the pre-2017 installers.
var vsComnTools = map[int]string{
	2003: "VS71COMNTOOLS",
	2005: "VS80COMNTOOLS",
	2008: "VS90COMNTOOLS",
	2010: "VS100COMNTOOLS",
	2012: "VS110COMNTOOLS",
	2013: "VS120COMNTOOLS",
	2015: "VS140COMNTOOLS",
}

// solutionVersion parses a .sln file header and returns the Visual Studio
// year required to build it.
func solutionVersion(path string) (int, error) {
	handle, err := os.Open(path)
	if err != nil {
		return 0, eris.Wrapf(err, "failed to open %s", path)
	}
	defer handle.Close()

	year := 0
	lookingForMarker := false

	scanner := bufio.NewScanner(handle)
	for scanner.Scan() {
		line := scanner.Text()

		if lookingForMarker && strings.Contains(line, "# Visual Studio") {
			fields := strings.Fields(line)
			year = vsVersionYears[fields[len(fields)-1]]
			lookingForMarker = false
			continue
		}

		if strings.Contains(line, "Microsoft Visual Studio Solution File") {
			fields := strings.Fields(line)
			year = vsOldVersionYears[fields[len(fields)-1]]
			if year == 2012 {
				// 2012 and later share this format version
				lookingForMarker = true
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, eris.Wrapf(err, "failed to read %s", path)
	}

	if year == 0 {
		return 0, eris.Wrapf(ErrConfiguration,
			"%s is corrupt or an unknown Visual Studio version", path)
	}
	return year, nil
}

// findVisualStudio locates devenv.com (preferred) or MSBuild for the given
// release year.
func findVisualStudio(year int) (string, error) {
	if envName, ok := vsComnTools[year]; ok {
		comnTools := os.Getenv(envName)
		if comnTools != "" {
			devenv := filepath.Join(comnTools, "..", "IDE", "devenv.com")
			if _, err := os.Stat(devenv); err == nil {
				return devenv, nil
			}
		}
	}

	roots := []string{
		os.Getenv("ProgramFiles"),
		os.Getenv("ProgramFiles(x86)"),
	}
	patterns := []string{
		filepath.Join("Microsoft Visual Studio", "%d", "*", "Common7", "IDE", "devenv.com"),
		filepath.Join("Microsoft Visual Studio", "%d", "*", "MSBuild", "Current", "Bin", "MSBuild.exe"),
	}

	for _, pattern := range patterns {
		pattern = strings.Replace(pattern, "%d", strconv.Itoa(year), 1)
		for _, root := range roots {
			if root == "" {
				continue
			}

			matches, err := filepath.Glob(filepath.Join(root, pattern))
			if err == nil && len(matches) > 0 {
				return matches[0], nil
			}
		}
	}

	return "", eris.Wrapf(ErrEnvironment, "Visual Studio %d is not installed", year)
}

func (inv *Invoker) visualStudioCommand(path, configuration string, clean bool) (*command, error) {
	if inv.HostOS != "windows" {
		return nil, eris.Wrapf(ErrEnvironment, "%s requires a Windows host", path)
	}

	year, err := solutionVersion(path)
	if err != nil {
		return nil, err
	}

	tool, err := findVisualStudio(year)
	if err != nil {
		return nil, eris.Wrapf(err, "%s requires Visual Studio %d to be installed", path, year)
	}

	action := "/Build"
	if clean {
		action = "/Clean"
	}

	argv := []string{tool, path, action}
	if configuration != "all" && configuration != "clean" {
		argv = append(argv, configuration)
	}
	return &command{argv: argv, dir: filepath.Dir(path)}, nil
}
