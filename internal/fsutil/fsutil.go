// Package fsutil wraps the recursive-copy and filtered-copy helpers the
// builder, distribute actions and stamp restoration all need: copying a
// checkout, an install tree, or a subset of one into another location.
// Grounded on the teacher's own use of github.com/termie/go-shutil
// (surgeon/inner.go's repo-preservation-set restore, which copies whole
// directories or single files with shutil.CopyTree/shutil.Copy), adapted to
// original_source's utils.py copy_file / copy_without / recursively_copy
// contract (a copy that can exclude by name and optionally preserve
// permissions/symlinks).
package fsutil

import (
	"os"
	"path/filepath"

	shutil "github.com/termie/go-shutil"

	"github.com/muddle-build/muddle/internal/merrors"
)

// CopyFile copies a single file from src to dst, optionally preserving
// mode/mtime, per original_source's copy_file.
func CopyFile(src, dst string, preserveMetadata bool) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return merrors.NewGiveUp("creating %s: %v", filepath.Dir(dst), err)
	}
	if err := shutil.Copy(src, dst, !preserveMetadata); err != nil {
		return merrors.NewGiveUp("copying %s to %s: %v", src, dst, err)
	}
	return nil
}

// RecursivelyCopy copies the directory tree rooted at src into dst,
// creating dst if necessary, per original_source's recursively_copy.
func RecursivelyCopy(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return merrors.NewGiveUp("creating %s: %v", filepath.Dir(dst), err)
	}
	if _, err := os.Stat(dst); err == nil {
		if err := os.RemoveAll(dst); err != nil {
			return merrors.NewGiveUp("clearing existing %s before copy: %v", dst, err)
		}
	}
	if err := shutil.CopyTree(src, dst, nil); err != nil {
		return merrors.NewGiveUp("copying tree %s to %s: %v", src, dst, err)
	}
	return nil
}

// CopyWithout copies src into dst, skipping any entry whose base name
// appears in exclude, per original_source's copy_without. Unlike
// RecursivelyCopy this walks manually since shutil.CopyTree's ignore
// callback works on a whole directory's listing, not single files.
func CopyWithout(src, dst string, exclude []string) error {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if skip[info.Name()] {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return shutil.Copy(path, target, false)
	})
}
