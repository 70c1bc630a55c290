// Package section encodes tile bounds into filenames and decodes them back.
// The filename is the only place tile bounds are recorded, so every reader
// and writer of the sec_x#-#_y#-#_z#-# form goes through this package.
package section

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"soaxsnakes/pkg/pipeerr"
)

var axisNames = [3]string{"x", "y", "z"}

var boundsPattern = regexp.MustCompile(`sec_x(\d+)-(\d+)_y(\d+)-(\d+)_z(\d+)-(\d+)`)

// Bounds is the half-open pixel range [Lower, Upper) of a tile on each axis
type Bounds struct {
	Lower [3]int
	Upper [3]int
}

// FromOffsetDims builds bounds from a tile origin and extent. This is the
// explicit alternative to decoding bounds from a filename.
func FromOffsetDims(offset, dims [3]int) (Bounds, error) {
	var b Bounds
	for i := 0; i < 3; i++ {
		b.Lower[i] = offset[i]
		b.Upper[i] = offset[i] + dims[i]
	}
	if err := b.Validate(); err != nil {
		return Bounds{}, err
	}
	return b, nil
}

// Offset returns the tile origin within the whole image
func (b Bounds) Offset() [3]int {
	return b.Lower
}

// Dims returns the tile pixel extent per axis
func (b Bounds) Dims() [3]int {
	var d [3]int
	for i := 0; i < 3; i++ {
		d[i] = b.Upper[i] - b.Lower[i]
	}
	return d
}

// Validate rejects negative origins and empty or inverted axes
func (b Bounds) Validate() error {
	for i := 0; i < 3; i++ {
		if b.Lower[i] < 0 {
			return pipeerr.Invalid(axisNames[i], "lower bound %d is negative", b.Lower[i])
		}
		if b.Upper[i] <= b.Lower[i] {
			return pipeerr.Invalid(axisNames[i], "tile extent %d-%d is not positive", b.Lower[i], b.Upper[i])
		}
	}
	return nil
}

// Within reports whether the tile lies inside an image of the given extent
func (b Bounds) Within(whole [3]int) bool {
	for i := 0; i < 3; i++ {
		if b.Lower[i] < 0 || b.Upper[i] > whole[i] {
			return false
		}
	}
	return true
}

func (b Bounds) String() string {
	return fmt.Sprintf("x[%d-%d] y[%d-%d] z[%d-%d]",
		b.Lower[0], b.Upper[0], b.Lower[1], b.Upper[1], b.Lower[2], b.Upper[2])
}

// Encode renders bounds as sec_x{lo}-{hi}_y{lo}-{hi}_z{lo}-{hi}. Every number
// on an axis is zero-padded to the digit count of that axis's whole-image
// extent, so all tiles of one image sort textually in spatial order.
func Encode(b Bounds, whole [3]int) string {
	var sb strings.Builder
	sb.WriteString("sec")
	for i := 0; i < 3; i++ {
		width := len(strconv.Itoa(whole[i]))
		fmt.Fprintf(&sb, "_%s%0*d-%0*d", axisNames[i], width, b.Lower[i], width, b.Upper[i])
	}
	return sb.String()
}

// Filename returns the encoded bounds with ext appended. ext may be given
// with or without its leading dot.
func Filename(b Bounds, whole [3]int, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return Encode(b, whole) + ext
}

// Decode extracts bounds from the base name of path
func Decode(path string) (Bounds, error) {
	name := filepath.Base(path)
	m := boundsPattern.FindStringSubmatch(name)
	if m == nil {
		return Bounds{}, &pipeerr.DecodeError{Name: name, Reason: "no sec_x#-#_y#-#_z#-# substring"}
	}

	var b Bounds
	for i := 0; i < 3; i++ {
		lo, err := strconv.Atoi(m[1+2*i])
		if err != nil {
			return Bounds{}, &pipeerr.DecodeError{Name: name, Reason: err.Error()}
		}
		hi, err := strconv.Atoi(m[2+2*i])
		if err != nil {
			return Bounds{}, &pipeerr.DecodeError{Name: name, Reason: err.Error()}
		}
		b.Lower[i], b.Upper[i] = lo, hi
	}
	if err := b.Validate(); err != nil {
		return Bounds{}, err
	}
	return b, nil
}

// HasBounds reports whether path carries an encoded bounds substring
func HasBounds(path string) bool {
	return boundsPattern.MatchString(filepath.Base(path))
}
