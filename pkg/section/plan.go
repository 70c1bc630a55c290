package section

import (
	"soaxsnakes/pkg/pipeerr"
)

// Plan divides an image of extent whole into tiles no larger than maxSize on
// any axis, with neighbouring tiles sharing overlap pixels. A maxSize of zero
// (or one at least the whole extent) leaves that axis undivided.
//
// Tiles are returned with z varying fastest, which is the textual order of
// their encoded filenames.
func Plan(whole, maxSize, overlap [3]int) ([]Bounds, error) {
	var ranges [3][][2]int
	for i := 0; i < 3; i++ {
		r, err := axisRanges(axisNames[i], whole[i], maxSize[i], overlap[i])
		if err != nil {
			return nil, err
		}
		ranges[i] = r
	}

	tiles := make([]Bounds, 0, len(ranges[0])*len(ranges[1])*len(ranges[2]))
	for _, rx := range ranges[0] {
		for _, ry := range ranges[1] {
			for _, rz := range ranges[2] {
				tiles = append(tiles, Bounds{
					Lower: [3]int{rx[0], ry[0], rz[0]},
					Upper: [3]int{rx[1], ry[1], rz[1]},
				})
			}
		}
	}
	return tiles, nil
}

// axisRanges splits [0, extent) into windows of at most size pixels that
// advance by size-overlap, the last window ending exactly at extent
func axisRanges(axis string, extent, size, overlap int) ([][2]int, error) {
	if extent <= 0 {
		return nil, pipeerr.Invalid(axis, "image extent %d is not positive", extent)
	}
	if size < 0 || overlap < 0 {
		return nil, pipeerr.Invalid(axis, "section size %d and overlap %d must not be negative", size, overlap)
	}
	if size == 0 || size >= extent {
		return [][2]int{{0, extent}}, nil
	}
	if overlap >= size {
		return nil, pipeerr.Invalid(axis, "overlap %d must be smaller than section size %d", overlap, size)
	}

	step := size - overlap
	var out [][2]int
	for lo := 0; ; lo += step {
		hi := lo + size
		if hi >= extent {
			out = append(out, [2]int{lo, extent})
			break
		}
		out = append(out, [2]int{lo, hi})
	}
	return out, nil
}
