package rules

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// DefaultFileName is the rules script searched for in each directory.
const DefaultFileName = "build_rules.star"

type cacheEntry struct {
	rules *Rules
	err   error
}

// Resolver locates rules scripts for directories and caches them by
// canonical path for the duration of a run.
type Resolver struct {
	// FileName is the script name to search for, DefaultFileName if empty.
	FileName string

	cache map[string]cacheEntry
}

// NewResolver returns a Resolver looking for scripts named fileName.
func NewResolver(fileName string) *Resolver {
	if fileName == "" {
		fileName = DefaultFileName
	}
	return &Resolver{
		FileName: fileName,
		cache:    make(map[string]cacheEntry),
	}
}

// Clear drops all cached scripts.
func (r *Resolver) Clear() {
	r.cache = make(map[string]cacheEntry)
}

// Load returns the rules script residing in dir, or nil if the directory
// has none. Loads (and load failures) are cached until Clear.
func (r *Resolver) Load(ctx context.Context, dir string) (*Rules, error) {
	dir, err := normalizeDir(dir)
	if err != nil {
		return nil, err
	}

	if entry, ok := r.cache[dir]; ok {
		return entry.rules, entry.err
	}

	scriptFile := filepath.Join(dir, r.FileName)
	_, err = os.Stat(scriptFile)
	if err != nil {
		if !eris.Is(err, os.ErrNotExist) {
			return nil, eris.Wrapf(err, "failed to check %s", scriptFile)
		}
		r.cache[dir] = cacheEntry{}
		return nil, nil
	}

	rules, err := LoadScript(ctx, scriptFile)
	if err != nil {
		rules = nil
	} else {
		zerolog.Ctx(ctx).Debug().Msgf("using configuration file %s", scriptFile)
	}

	r.cache[dir] = cacheEntry{rules: rules, err: err}
	return rules, err
}

// Chain collects the rules scripts that apply to dir for the given tool
// prefix. The search starts in dir and walks upward: a script found in dir
// itself is always accepted, one found in an ancestor only if its generic
// flag is set. The first script whose continue flag is unset ends the
// search, whether or not it was accepted.
func (r *Resolver) Chain(ctx context.Context, dir, prefix string) ([]*Rules, error) {
	start, err := normalizeDir(dir)
	if err != nil {
		return nil, err
	}

	var chain []*Rules
	current := start
	for {
		rules, err := r.Load(ctx, current)
		if err != nil {
			return nil, err
		}

		keepGoing := true
		if rules != nil {
			flags := rules.Flags(prefix)
			if current == start || flags.Generic {
				chain = append(chain, rules)
			}
			keepGoing = flags.Continue
		}

		if !keepGoing {
			break
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return chain, nil
}
