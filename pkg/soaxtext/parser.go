// Package soaxtext decodes the fixed-width snake dump written by the SOAX
// filament tracer.
//
// A dump starts with a 30 line preamble holding the run parameters. After
// it, each snake is a header line whose first token is the snake index,
// followed by one row per point and closed by a single-token line plus the
// line after it (the open/closed flag pair). A line of exactly three tokens
// starts the junction section, which is not snake geometry.
//
// Point rows hold the point index up to the first space, then fixed 12
// column fields: x, y, [z,] fg, bg.
package soaxtext

import (
	"bufio"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"soaxsnakes/internal/models"
	"soaxsnakes/pkg/pipeerr"
)

const (
	// PreambleLines is the number of run-parameter lines before the first snake
	PreambleLines = 30

	// FieldWidth is the column width of every numeric field after the point index
	FieldWidth = 12
)

var (
	fields2D = []string{"x", "y", "fg", "bg"}
	fields3D = []string{"x", "y", "z", "fg", "bg"}
)

// Result is the outcome of parsing one snake dump
type Result struct {
	// Snakes are ordered by ascending snake index
	Snakes models.SnakeList

	// Is3D is set when point rows carried a z field
	Is3D bool
}

type parseState int

const (
	expectHeader parseState = iota
	inSnake
	skipFlag
)

// ParseFile opens path and parses it
func ParseFile(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, errors.Wrap(err, "open snake file")
	}
	defer f.Close()

	res, err := Parse(f)
	if err != nil {
		return Result{}, errors.Wrapf(err, "parse %s", path)
	}
	return res, nil
}

// Parse reads a snake dump from r
func Parse(r io.Reader) (Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		res     Result
		state   = expectHeader
		current int
		lineNo  int
		sawDims bool
	)
	snakes := make(map[int]models.Snake)

scan:
	for scanner.Scan() {
		lineNo++
		if lineNo <= PreambleLines {
			continue
		}

		line := strings.TrimRight(scanner.Text(), "\r")
		tokens := strings.Fields(line)

		if state == skipFlag {
			state = expectHeader
			continue
		}
		if len(tokens) == 0 {
			continue
		}
		if len(tokens) == 3 {
			break scan
		}

		switch state {
		case expectHeader:
			idx, err := strconv.Atoi(tokens[0])
			if err != nil {
				return Result{}, &pipeerr.ParseError{
					Line: lineNo, Field: "snake index",
					StartCol: 1, EndCol: len(tokens[0]),
					Text: tokens[0], Err: err,
				}
			}
			if _, ok := snakes[idx]; !ok {
				snakes[idx] = models.Snake{}
			}
			current = idx
			state = inSnake

		case inSnake:
			if len(tokens) == 1 {
				state = skipFlag
				continue
			}
			p, is3D, err := parsePointRow(line, lineNo)
			if err != nil {
				return Result{}, err
			}
			if sawDims && is3D != res.Is3D {
				return Result{}, &pipeerr.ParseError{
					Line: lineNo,
					Err:  errors.New("point row dimensionality differs from earlier rows"),
				}
			}
			res.Is3D, sawDims = is3D, true
			snakes[current] = append(snakes[current], p)
		}
	}
	if err := scanner.Err(); err != nil {
		return Result{}, errors.Wrap(err, "read snake text")
	}
	if lineNo < PreambleLines {
		return Result{}, &pipeerr.ParseError{
			Line: lineNo,
			Err:  errors.Errorf("input ends inside the %d line preamble", PreambleLines),
		}
	}

	res.Snakes = collect(snakes)
	return res, nil
}

// collect emits non-empty snakes sorted by their source index
func collect(snakes map[int]models.Snake) models.SnakeList {
	indices := make([]int, 0, len(snakes))
	for idx, s := range snakes {
		if len(s) > 0 {
			indices = append(indices, idx)
		}
	}
	sort.Ints(indices)

	out := make(models.SnakeList, 0, len(indices))
	for _, idx := range indices {
		out = append(out, snakes[idx])
	}
	return out
}

// parsePointRow decodes one fixed-width point row
func parsePointRow(line string, lineNo int) (models.Point, bool, error) {
	trimmed := strings.TrimLeft(line, " \t")
	lead := len(line) - len(trimmed)

	cut := strings.IndexAny(trimmed, " \t")
	if cut < 0 {
		return models.Point{}, false, &pipeerr.ParseError{Line: lineNo, Err: errors.New("point row has no fields")}
	}
	if _, err := strconv.Atoi(trimmed[:cut]); err != nil {
		return models.Point{}, false, &pipeerr.ParseError{
			Line: lineNo, Field: "point index",
			StartCol: lead + 1, EndCol: lead + cut,
			Text: trimmed[:cut], Err: err,
		}
	}

	start := lead + cut
	rest := strings.TrimRight(line[start:], " \t")
	n := (len(rest) + FieldWidth - 1) / FieldWidth

	var names []string
	switch n {
	case len(fields2D):
		names = fields2D
	case len(fields3D):
		names = fields3D
	default:
		return models.Point{}, false, &pipeerr.ParseError{
			Line: lineNo,
			Err:  errors.Errorf("expected %d or %d fields of width %d, found %d", len(fields2D), len(fields3D), FieldWidth, n),
		}
	}

	values := make([]float64, n)
	for i := range values {
		lo := i * FieldWidth
		hi := lo + FieldWidth
		if hi > len(rest) {
			hi = len(rest)
		}
		raw := rest[lo:hi]
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
			err = errors.New("value is not finite")
		}
		if err != nil {
			return models.Point{}, false, &pipeerr.ParseError{
				Line: lineNo, Field: names[i],
				StartCol: start + lo + 1, EndCol: start + hi,
				Text: raw, Err: err,
			}
		}
		values[i] = v
	}

	if n == len(fields3D) {
		return models.Point{Pos: [3]float64{values[0], values[1], values[2]}, FG: values[3], BG: values[4]}, true, nil
	}
	return models.Point{Pos: [3]float64{values[0], values[1], 0}, FG: values[2], BG: values[3]}, false, nil
}
