package soaxtext

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"soaxsnakes/internal/models"
	"soaxsnakes/pkg/pipeerr"
)

// preamble returns the run-parameter block the tracer writes before any snake
func preamble() string {
	var b strings.Builder
	b.WriteString("image\t/data/sec_x000-100_y000-100_z00-10.tif\n")
	for i := 1; i < PreambleLines; i++ {
		fmt.Fprintf(&b, "param-%02d\t%d\n", i, i)
	}
	return b.String()
}

// row formats a point row the way the tracer does
func row(idx int, values ...float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", idx)
	for _, v := range values {
		fmt.Fprintf(&b, "%12.4f", v)
	}
	b.WriteString("\n")
	return b.String()
}

// snakeBlock formats one snake: header, rows, end marker and flag line
func snakeBlock(index int, rows ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d\t%d\n", index, len(rows))
	for _, r := range rows {
		b.WriteString(r)
	}
	b.WriteString("#\n")
	b.WriteString("1\t0\n")
	return b.String()
}

func TestParse3D(t *testing.T) {
	input := preamble() +
		snakeBlock(0,
			row(0, 10, 10, 0, 120.5, 30.25),
			row(1, 20, 20, 1.5, 121, 31),
		) +
		snakeBlock(1,
			row(0, 5, 6, 7, 50, 10),
		)

	res, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !res.Is3D {
		t.Error("Expected 3D result")
	}

	want := models.SnakeList{
		{
			{Pos: [3]float64{10, 10, 0}, FG: 120.5, BG: 30.25},
			{Pos: [3]float64{20, 20, 1.5}, FG: 121, BG: 31},
		},
		{
			{Pos: [3]float64{5, 6, 7}, FG: 50, BG: 10},
		},
	}
	if !reflect.DeepEqual(res.Snakes, want) {
		t.Errorf("Unexpected snakes:\n got %+v\nwant %+v", res.Snakes, want)
	}
}

func TestParse2DLiftsToZero(t *testing.T) {
	input := preamble() + snakeBlock(3, row(0, 1.25, 2.5, 9, 4), row(1, 3, 4, 8, 3))

	res, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.Is3D {
		t.Error("Expected 2D result")
	}
	if len(res.Snakes) != 1 || len(res.Snakes[0]) != 2 {
		t.Fatalf("Unexpected shape: %+v", res.Snakes)
	}
	p := res.Snakes[0][0]
	if p.Pos != [3]float64{1.25, 2.5, 0} || p.FG != 9 || p.BG != 4 {
		t.Errorf("Unexpected point: %+v", p)
	}
}

func TestParseOrdersBySnakeIndex(t *testing.T) {
	input := preamble() +
		snakeBlock(7, row(0, 7, 7, 7, 1, 1)) +
		snakeBlock(2, row(0, 2, 2, 2, 1, 1)) +
		snakeBlock(5, row(0, 5, 5, 5, 1, 1))

	first, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	second, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("Parsing the same input twice gave different results")
	}

	var xs []float64
	for _, s := range first.Snakes {
		xs = append(xs, s[0].Pos[0])
	}
	if !reflect.DeepEqual(xs, []float64{2, 5, 7}) {
		t.Errorf("Expected snakes ordered by index, got x = %v", xs)
	}
}

func TestParseStopsAtJunctions(t *testing.T) {
	input := preamble() +
		snakeBlock(0, row(0, 1, 1, 1, 1, 1)) +
		"[junctions]\t0\t2\n" +
		"1\t2\t3\n" +
		snakeBlock(1, row(0, 9, 9, 9, 9, 9))

	res, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Snakes) != 1 {
		t.Errorf("Expected parsing to stop at the junction section, got %d snakes", len(res.Snakes))
	}
}

func TestParseEmptyAndTrailingBlankLines(t *testing.T) {
	res, err := Parse(strings.NewReader(preamble() + "\n\n\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.Snakes == nil || len(res.Snakes) != 0 {
		t.Errorf("Expected empty non-nil list, got %#v", res.Snakes)
	}

	res, err = Parse(strings.NewReader(preamble() + snakeBlock(0, row(0, 1, 2, 3, 4, 5)) + "\n\n"))
	if err != nil {
		t.Fatalf("Parse with trailing blanks failed: %v", err)
	}
	if len(res.Snakes) != 1 {
		t.Errorf("Expected 1 snake, got %d", len(res.Snakes))
	}
}

func TestParseTruncatedPreamble(t *testing.T) {
	_, err := Parse(strings.NewReader("image\tfoo.tif\n"))
	var pe *pipeerr.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("Expected ParseError, got %v", err)
	}
}

func TestParseMalformedField(t *testing.T) {
	bad := "0" + fmt.Sprintf("%12.4f", 10.0) + fmt.Sprintf("%12s", "abc") + fmt.Sprintf("%12.4f%12.4f%12.4f", 0.0, 1.0, 1.0) + "\n"
	input := preamble() + "0\t1\n" + bad

	_, err := Parse(strings.NewReader(input))
	var pe *pipeerr.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("Expected ParseError, got %T: %v", err, err)
	}
	if pe.Line != PreambleLines+2 {
		t.Errorf("Expected line %d, got %d", PreambleLines+2, pe.Line)
	}
	if pe.Field != "y" {
		t.Errorf("Expected field y, got %q", pe.Field)
	}
	if pe.StartCol != 14 || pe.EndCol != 25 {
		t.Errorf("Expected columns 14-25, got %d-%d", pe.StartCol, pe.EndCol)
	}
}

func TestParseRejectsNonFiniteFields(t *testing.T) {
	for _, value := range []string{"nan", "inf", "-Inf", "infinity"} {
		t.Run(value, func(t *testing.T) {
			bad := "0" + fmt.Sprintf("%12.4f%12.4f", 5.0, 5.0) + fmt.Sprintf("%12s", value) + fmt.Sprintf("%12.4f", 10.0) + "\n"
			input := preamble() + "0\t1\n" + bad

			_, err := Parse(strings.NewReader(input))
			var pe *pipeerr.ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("Expected ParseError, got %T: %v", err, err)
			}
			if pe.Line != PreambleLines+2 {
				t.Errorf("Expected line %d, got %d", PreambleLines+2, pe.Line)
			}
			if pe.Field != "fg" {
				t.Errorf("Expected field fg, got %q", pe.Field)
			}
			if pe.StartCol != 26 || pe.EndCol != 37 {
				t.Errorf("Expected columns 26-37, got %d-%d", pe.StartCol, pe.EndCol)
			}
		})
	}
}

func TestParseWrongFieldCount(t *testing.T) {
	input := preamble() + "0\t1\n" + row(0, 1, 2, 3)
	_, err := Parse(strings.NewReader(input))
	if pipeerr.KindOf(err) != pipeerr.KindParse {
		t.Fatalf("Expected parse error, got %v", err)
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sec_x000-100_y000-100_z00-10.txt")
	if err := os.WriteFile(path, []byte(preamble()+snakeBlock(0, row(0, 1, 2, 3, 4, 5))), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	res, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(res.Snakes) != 1 {
		t.Errorf("Expected 1 snake, got %d", len(res.Snakes))
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("Expected error for missing file")
	}
}
