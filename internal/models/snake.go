package models

// Point is a single traced sample along a snake
type Point struct {
	// Pos is the x, y, z position in pixels (or micrometers after rescaling).
	// 2D snakes carry z = 0.
	Pos [3]float64 `json:"pos"`

	// FG is the foreground intensity sampled by the tracer at this point
	FG float64 `json:"fg"`

	// BG is the background intensity sampled by the tracer at this point
	BG float64 `json:"bg"`
}

// Snake is one traced open polyline. Point order is the traversal order
// along the filament and is never changed by any transform.
type Snake []Point

// SnakeList is the set of snakes produced by one parse, one tile or one
// whole-image reconstruction
type SnakeList []Snake

// Metadata describes the image a SnakeList was traced against
type Metadata struct {
	// DimsPixelsXYZ is the pixel extent of the image the snakes belong to:
	// the tile before joining, the whole image after.
	DimsPixelsXYZ [3]int `json:"dims_pixels_xyz"`

	// OffsetPixelsXYZ is the tile origin within the whole image.
	// Only tile files carry it.
	OffsetPixelsXYZ *[3]int `json:"offset_pixels_xyz,omitempty"`

	// PixelSpacingUmXYZ is the physical pixel spacing in micrometers.
	// Only present once positions have been rescaled to micrometers.
	PixelSpacingUmXYZ *[3]float64 `json:"pixel_spacing_um_xyz,omitempty"`
}

// SnakeFile is the on-disk JSON representation of a SnakeList
type SnakeFile struct {
	Snakes   SnakeList `json:"snakes"`
	Metadata Metadata  `json:"metadata"`
}

// Map returns a new snake with fn applied to every point position
func (s Snake) Map(fn func(pos [3]float64) [3]float64) Snake {
	out := make(Snake, len(s))
	for i, p := range s {
		out[i] = Point{Pos: fn(p.Pos), FG: p.FG, BG: p.BG}
	}
	return out
}

// Map returns a new list with fn applied to every point position of every snake
func (l SnakeList) Map(fn func(pos [3]float64) [3]float64) SnakeList {
	out := make(SnakeList, len(l))
	for i, s := range l {
		out[i] = s.Map(fn)
	}
	return out
}

// NumPoints returns the total number of points across all snakes
func (l SnakeList) NumPoints() int {
	n := 0
	for _, s := range l {
		n += len(s)
	}
	return n
}

// HasDepth reports whether any point leaves the z = 0 plane
func (l SnakeList) HasDepth() bool {
	for _, s := range l {
		for _, p := range s {
			if p.Pos[2] != 0 {
				return true
			}
		}
	}
	return false
}

// Is3D reports whether the file describes volumetric data, either through
// its image depth or through the snake coordinates themselves
func (f SnakeFile) Is3D() bool {
	return f.Metadata.DimsPixelsXYZ[2] > 1 || f.Snakes.HasDepth()
}
