// Package imagedims reads the pixel extent of an original, unsectioned
// TIFF stack without decoding its pixels.
package imagedims

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/image/tiff"
)

// Extensions searched by Find, in order
var Extensions = []string{".tif", ".tiff", ".TIF", ".TIFF"}

// maxPages guards against IFD chains that loop back on themselves
const maxPages = 1 << 20

// Find returns the path of the TIFF named after group in dir
func Find(dir, group string) (string, error) {
	for _, ext := range Extensions {
		path := filepath.Join(dir, group+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", errors.Errorf("no TIFF named %q in %s", group, dir)
}

// Read returns the width, height and page count of the TIFF at path
func Read(path string) ([3]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return [3]int{}, errors.Wrap(err, "open image")
	}
	defer f.Close()

	cfg, err := tiff.DecodeConfig(f)
	if err != nil {
		return [3]int{}, errors.Wrapf(err, "decode TIFF header of %s", path)
	}

	pages, err := CountPages(f)
	if err != nil {
		return [3]int{}, errors.Wrapf(err, "count pages of %s", path)
	}
	return [3]int{cfg.Width, cfg.Height, pages}, nil
}

// CountPages walks the IFD chain of a classic TIFF and returns the number
// of image directories, which is the z extent of a stack
func CountPages(r io.ReadSeeker) (int, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}

	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, errors.Wrap(err, "read TIFF header")
	}

	var order binary.ByteOrder
	switch string(header[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return 0, errors.New("not a TIFF file")
	}
	if order.Uint16(header[2:4]) != 42 {
		return 0, errors.New("unsupported TIFF variant")
	}

	offset := order.Uint32(header[4:8])
	pages := 0
	for offset != 0 {
		if pages >= maxPages {
			return 0, errors.New("IFD chain does not terminate")
		}
		if _, err := r.Seek(int64(offset), io.SeekStart); err != nil {
			return 0, err
		}
		var count [2]byte
		if _, err := io.ReadFull(r, count[:]); err != nil {
			return 0, errors.Wrapf(err, "read IFD %d", pages)
		}
		if _, err := r.Seek(int64(order.Uint16(count[:]))*12, io.SeekCurrent); err != nil {
			return 0, err
		}
		var next [4]byte
		if _, err := io.ReadFull(r, next[:]); err != nil {
			return 0, errors.Wrapf(err, "read IFD %d link", pages)
		}
		offset = order.Uint32(next[:])
		pages++
	}
	return pages, nil
}
