package reconstruction

import (
	"gonum.org/v1/gonum/mat"

	"soaxsnakes/internal/models"
	"soaxsnakes/pkg/pipeerr"
)

// Clamp pins every coordinate to the inclusive pixel range [0, dim-1] of
// its axis. The tracer occasionally places points just outside the traced
// sub-volume; they are moved onto its border rather than dropped so every
// snake keeps all of its points.
func Clamp(snakes models.SnakeList, dims [3]int) models.SnakeList {
	var upper [3]float64
	for i, d := range dims {
		if d > 1 {
			upper[i] = float64(d - 1)
		}
	}
	return snakes.Map(func(p [3]float64) [3]float64 {
		for i := range p {
			if p[i] < 0 {
				p[i] = 0
			} else if p[i] > upper[i] {
				p[i] = upper[i]
			}
		}
		return p
	})
}

// Shift translates every point by a tile offset, moving tile-local
// coordinates into the whole-image frame
func Shift(snakes models.SnakeList, offset [3]int) models.SnakeList {
	return snakes.Map(func(p [3]float64) [3]float64 {
		return [3]float64{
			p[0] + float64(offset[0]),
			p[1] + float64(offset[1]),
			p[2] + float64(offset[2]),
		}
	})
}

// Scale describes the pixel to micrometer conversion
type Scale struct {
	// SpacingUm is the physical pixel spacing. Z may be zero for 2D data.
	SpacingUm [3]float64

	// Lateral is the in-plane resize factor applied before tracing. Z is
	// never divided by it since resizing only happens in-plane.
	Lateral float64
}

// Matrix returns the diagonal spacing transform taking pixel rows to
// micrometer rows before the lateral factor is divided out
func (s Scale) Matrix() *mat.DiagDense {
	return mat.NewDiagDense(3, []float64{s.SpacingUm[0], s.SpacingUm[1], s.SpacingUm[2]})
}

func (s Scale) lateral() float64 {
	if s.Lateral == 0 {
		return 1
	}
	return s.Lateral
}

// RescaleFile converts a pixel-space snake file to micrometers. Intensities,
// dims and any tile offset pass through unchanged.
func RescaleFile(f models.SnakeFile, s Scale) (models.SnakeFile, error) {
	if f.Metadata.PixelSpacingUmXYZ != nil {
		return models.SnakeFile{}, pipeerr.Invalid("pixel_spacing_um_xyz", "snakes are already in micrometers (spacing %v)", *f.Metadata.PixelSpacingUmXYZ)
	}
	if s.SpacingUm[0] <= 0 || s.SpacingUm[1] <= 0 {
		return models.SnakeFile{}, pipeerr.Invalid("spacing", "x and y spacing must be positive, got %v", s.SpacingUm)
	}
	if s.Lateral < 0 {
		return models.SnakeFile{}, pipeerr.Invalid("lateral scale", "must be positive, got %v", s.Lateral)
	}
	if f.Is3D() && s.SpacingUm[2] <= 0 {
		return models.SnakeFile{}, pipeerr.Invalid("spacing", "z spacing is required for 3D snakes")
	}

	spacing := s.SpacingUm
	out := models.SnakeFile{
		Snakes:   rescaleSnakes(f.Snakes, s.Matrix(), s.lateral()),
		Metadata: f.Metadata,
	}
	out.Metadata.PixelSpacingUmXYZ = &spacing
	if f.Metadata.OffsetPixelsXYZ != nil {
		offset := *f.Metadata.OffsetPixelsXYZ
		out.Metadata.OffsetPixelsXYZ = &offset
	}
	return out, nil
}

// rescaleSnakes stacks every point into an N x 3 matrix, applies the
// transform in one product and splits the rows back into snakes. x and y
// are then divided by lateral, so each is computed as p * spacing / lateral.
func rescaleSnakes(snakes models.SnakeList, transform mat.Matrix, lateral float64) models.SnakeList {
	n := snakes.NumPoints()
	out := make(models.SnakeList, len(snakes))
	if n == 0 {
		for i := range snakes {
			out[i] = models.Snake{}
		}
		return out
	}

	pixels := mat.NewDense(n, 3, nil)
	row := 0
	for _, s := range snakes {
		for _, p := range s {
			pixels.SetRow(row, p.Pos[:])
			row++
		}
	}

	var um mat.Dense
	um.Mul(pixels, transform)

	row = 0
	for i, s := range snakes {
		scaled := make(models.Snake, len(s))
		for j, p := range s {
			scaled[j] = models.Point{
				Pos: [3]float64{um.At(row, 0) / lateral, um.At(row, 1) / lateral, um.At(row, 2)},
				FG:  p.FG,
				BG:  p.BG,
			}
			row++
		}
		out[i] = scaled
	}
	return out
}
