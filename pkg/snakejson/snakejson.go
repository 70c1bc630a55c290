// Package snakejson reads and writes the JSON snake file format shared by
// every stage of the pipeline.
package snakejson

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"soaxsnakes/internal/models"
)

// Ext is the extension of snake JSON files
const Ext = ".json"

// Save writes f to path. The parent directory must already exist. The file
// appears under its final name only once it has been completely written.
func Save(path string, f models.SnakeFile) error {
	f.Snakes = normalize(f.Snakes)

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "create temporary file for %s", path)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	w := bufio.NewWriter(tmp)
	if err := json.NewEncoder(w).Encode(f); err != nil {
		return errors.Wrapf(err, "encode %s", path)
	}
	if err := w.Flush(); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	if err := tmp.Sync(); err != nil {
		return errors.Wrapf(err, "sync %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", path)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return errors.Wrapf(err, "chmod %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrapf(err, "rename into %s", path)
	}
	committed = true
	return nil
}

// Load reads a snake file written by Save
func Load(path string) (models.SnakeFile, error) {
	fh, err := os.Open(path)
	if err != nil {
		return models.SnakeFile{}, errors.Wrap(err, "open snake json")
	}
	defer fh.Close()

	var f models.SnakeFile
	if err := json.NewDecoder(bufio.NewReader(fh)).Decode(&f); err != nil {
		return models.SnakeFile{}, errors.Wrapf(err, "decode %s", path)
	}
	f.Snakes = normalize(f.Snakes)
	return f, nil
}

// normalize returns a copy of l with nil slices replaced, so that they
// encode as [] rather than null. l itself is left untouched.
func normalize(l models.SnakeList) models.SnakeList {
	out := make(models.SnakeList, len(l))
	for i, s := range l {
		if s == nil {
			s = models.Snake{}
		}
		out[i] = s
	}
	return out
}
