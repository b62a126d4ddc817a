package instructions

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/muddle-build/muddle/internal/merrors"
)

// SortByPriority orders docs ascending by Priority, the order multiple
// instructions/<pkg>/*.xml documents are applied in, per spec.md §6.
func SortByPriority(docs []*Document) {
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Priority < docs[j].Priority })
}

// Apply executes every instruction in doc against root, in document order,
// per the "deployments/cpio.py's instruction application" feature named in
// SPEC_FULL.md §3. Unknown instruction kinds are reported as GiveUp rather
// than silently skipped.
func Apply(doc *Document, root string) error {
	for _, inst := range doc.Instructions {
		paths, err := inst.FileSpec().Resolve(root)
		if err != nil {
			return err
		}
		for _, rel := range paths {
			full := filepath.Join(root, inst.Base, rel)
			if err := applyOne(inst, full); err != nil {
				return err
			}
		}
	}
	return nil
}

func applyOne(inst Instruction, path string) error {
	switch inst.Kind {
	case "chmod":
		mode, err := strconv.ParseUint(inst.Mode, 8, 32)
		if err != nil {
			return merrors.NewGiveUp("chmod instruction for %s: invalid mode %q: %v", path, inst.Mode, err)
		}
		if err := os.Chmod(path, os.FileMode(mode)); err != nil {
			return merrors.NewGiveUp("chmod %s: %v", path, err)
		}
		return nil
	case "chown":
		uid, gid := -1, -1
		if inst.Owner != "" {
			n, err := strconv.Atoi(inst.Owner)
			if err != nil {
				return merrors.NewGiveUp("chown instruction for %s: invalid owner %q: %v", path, inst.Owner, err)
			}
			uid = n
		}
		if inst.Group != "" {
			n, err := strconv.Atoi(inst.Group)
			if err != nil {
				return merrors.NewGiveUp("chown instruction for %s: invalid group %q: %v", path, inst.Group, err)
			}
			gid = n
		}
		if err := os.Chown(path, uid, gid); err != nil {
			return merrors.NewGiveUp("chown %s: %v", path, err)
		}
		return nil
	case "mknod":
		return merrors.NewUnsupported("mknod instruction for %s requires root privileges on most systems; not performed", path)
	default:
		return merrors.NewGiveUp("unknown instruction kind %q for %s", inst.Kind, path)
	}
}
