package reconstruction

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"soaxsnakes/internal/models"
)

// Summary holds descriptive statistics of a snake list, logged after each
// join so a silently failed trace stands out
type Summary struct {
	// Snakes and Points count the list contents
	Snakes int
	Points int

	// MeanPoints and StdPoints describe the number of points per snake
	MeanPoints float64
	StdPoints  float64

	// MeanLength is the mean polyline length in the list's units
	MeanLength float64

	// MeanFG and MeanBG are the mean intensity samples over all points
	MeanFG float64
	MeanBG float64
}

// Summarize computes the summary of snakes. An empty list yields a zero Summary.
func Summarize(snakes models.SnakeList) Summary {
	sum := Summary{Snakes: len(snakes), Points: snakes.NumPoints()}
	if sum.Points == 0 {
		return sum
	}

	counts := make([]float64, len(snakes))
	lengths := make([]float64, len(snakes))
	fg := make([]float64, 0, sum.Points)
	bg := make([]float64, 0, sum.Points)
	for i, s := range snakes {
		counts[i] = float64(len(s))
		lengths[i] = polylineLength(s)
		for _, p := range s {
			fg = append(fg, p.FG)
			bg = append(bg, p.BG)
		}
	}

	sum.MeanPoints, sum.StdPoints = stat.MeanStdDev(counts, nil)
	if len(counts) < 2 {
		sum.StdPoints = 0
	}
	sum.MeanLength = stat.Mean(lengths, nil)
	sum.MeanFG = stat.Mean(fg, nil)
	sum.MeanBG = stat.Mean(bg, nil)
	return sum
}

func polylineLength(s models.Snake) float64 {
	var length float64
	for i := 1; i < len(s); i++ {
		dx := s[i].Pos[0] - s[i-1].Pos[0]
		dy := s[i].Pos[1] - s[i-1].Pos[1]
		dz := s[i].Pos[2] - s[i-1].Pos[2]
		length += math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
	return length
}
