// Package instructions implements the instruction-file mechanism
// deployments use to finish an install tree (file ownership/permissions/
// device nodes) after files have been copied in, per spec.md §6's
// "Instruction files" and "File-spec language".
package instructions

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/muddle-build/muddle/internal/merrors"
)

// FileSpec is spec.md §6's `(base-path, pattern, allUnder, allRegex)`:
// a way to name a set of files relative to some root without enumerating
// them all by hand.
type FileSpec struct {
	Base     string
	Pattern  string
	AllUnder bool
	AllRegex bool
}

// Resolve returns every path under root matching fs, relative to root,
// in sorted order. When AllRegex, Pattern is a regular expression matched
// against the path relative to Base; otherwise it's a filepath.Match glob
// applied to each entry's base name. When AllUnder, descendants at any
// depth are considered; otherwise only Base's direct children.
func (fs FileSpec) Resolve(root string) ([]string, error) {
	base := filepath.Join(root, fs.Base)

	var re *regexp.Regexp
	if fs.AllRegex {
		compiled, err := regexp.Compile(fs.Pattern)
		if err != nil {
			return nil, merrors.NewGiveUp("file-spec pattern %q: %v", fs.Pattern, err)
		}
		re = compiled
	}

	var matches []string
	walk := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == base {
				return filepath.SkipDir
			}
			return err
		}
		if path == base {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		if !fs.AllUnder && filepath.Dir(rel) != "." {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if fs.matchOne(rel, info.Name(), re) {
			matches = append(matches, rel)
		}
		return nil
	}

	if err := filepath.Walk(base, walk); err != nil {
		return nil, merrors.NewGiveUp("resolving file-spec under %s: %v", base, err)
	}
	sort.Strings(matches)
	return matches, nil
}

func (fs FileSpec) matchOne(rel, name string, re *regexp.Regexp) bool {
	if fs.AllRegex {
		return re.MatchString(rel)
	}
	ok, _ := filepath.Match(fs.Pattern, name)
	return ok
}
