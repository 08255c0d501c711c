package rules

import (
	_ "embed"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

//go:embed default_rules.star
var defaultRules []byte

// WriteDefault writes the sample rules script into dir under the given
// file name. Existing files are never overwritten.
func WriteDefault(dir, fileName string) error {
	if fileName == "" {
		fileName = DefaultFileName
	}

	dest := fileName
	if !filepath.IsAbs(dest) {
		dest = filepath.Join(dir, dest)
	}

	_, err := os.Stat(dest)
	if err == nil {
		return eris.Errorf("%s already exists", dest)
	}
	if !eris.Is(err, os.ErrNotExist) {
		return eris.Wrapf(err, "failed to check %s", dest)
	}

	return ioutil.WriteFile(dest, defaultRules, 0644)
}
