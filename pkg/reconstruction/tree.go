package reconstruction

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/pkg/errors"

	"soaxsnakes/pkg/pipeerr"
)

// dirsAtDepth returns the directories exactly depth levels below root,
// sorted. Depth 0 is root itself.
func dirsAtDepth(root string, depth int) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrap(err, "stat source root")
	}
	if !info.IsDir() {
		return nil, errors.Errorf("source root %s is not a directory", root)
	}

	level := []string{root}
	for d := 0; d < depth; d++ {
		var next []string
		for _, dir := range level {
			children, err := subdirs(dir)
			if err != nil {
				return nil, err
			}
			next = append(next, children...)
		}
		level = next
	}
	sort.Strings(level)
	return level, nil
}

// subdirs lists the immediate child directories of dir, sorted by name
func subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", dir)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

// filesWithExt lists the regular files in dir with extension ext
// (case-insensitive), sorted by name
func filesWithExt(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", dir)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ext) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

// mirrorDir maps dir under srcRoot to the same relative place under dstRoot
// and makes sure it exists there
func mirrorDir(srcRoot, dstRoot, dir string) (string, error) {
	rel, err := filepath.Rel(srcRoot, dir)
	if err != nil {
		return "", errors.Wrapf(err, "relate %s to %s", dir, srcRoot)
	}
	target := filepath.Join(dstRoot, rel)
	if err := ensureDir(target); err != nil {
		return "", err
	}
	return target, nil
}

// ensureDir creates path and its parents. An existing non-directory at path
// or at any ancestor is a PathConflictError.
func ensureDir(path string) error {
	for p := filepath.Clean(path); ; p = filepath.Dir(p) {
		info, err := os.Stat(p)
		if err == nil {
			if !info.IsDir() {
				return &pipeerr.PathConflictError{Path: p}
			}
			break
		}
		// ENOTDIR means an ancestor is a file; keep climbing to name it
		if !os.IsNotExist(err) && !errors.Is(err, syscall.ENOTDIR) {
			return errors.Wrapf(err, "stat %s", p)
		}
		if parent := filepath.Dir(p); parent == p {
			break
		}
	}
	return errors.Wrapf(os.MkdirAll(path, 0755), "create %s", path)
}

// swapExt replaces the extension of a file name
func swapExt(name, ext string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}

// relItem names path relative to root for logs and reports
func relItem(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return rel
	}
	return path
}
