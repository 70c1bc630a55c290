package section

import (
	"sort"
	"testing"

	"github.com/pkg/errors"

	"soaxsnakes/pkg/pipeerr"
)

func TestEncodePadsToWholeExtent(t *testing.T) {
	b := Bounds{Lower: [3]int{100, 150, 30}, Upper: [3]int{200, 300, 80}}
	got := Encode(b, [3]int{1024, 2048, 100})
	want := "sec_x0100-0200_y0150-0300_z030-080"
	if got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}

	if name := Filename(b, [3]int{1024, 2048, 100}, "tif"); name != want+".tif" {
		t.Errorf("Filename() = %q", name)
	}
	if name := Filename(b, [3]int{1024, 2048, 100}, ".json"); name != want+".json" {
		t.Errorf("Filename() = %q", name)
	}
}

func TestDecode(t *testing.T) {
	b, err := Decode("/data/run1/cell_3/sec_x0100-0200_y0150-0300_z0030-0080.txt")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if b.Offset() != [3]int{100, 150, 30} {
		t.Errorf("Unexpected offset %v", b.Offset())
	}
	if b.Dims() != [3]int{100, 150, 50} {
		t.Errorf("Unexpected dims %v", b.Dims())
	}
}

func TestDecodeEncodeInverse(t *testing.T) {
	whole := [3]int{2048, 512, 64}
	tiles, err := Plan(whole, [3]int{300, 200, 20}, [3]int{20, 10, 4})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	for _, b := range tiles {
		got, err := Decode(Filename(b, whole, ".tif"))
		if err != nil {
			t.Fatalf("Decode(%s) failed: %v", b, err)
		}
		if got != b {
			t.Errorf("Round trip mismatch: %v -> %v", b, got)
		}
	}
}

func TestDecodeRejectsUnrelatedNames(t *testing.T) {
	for _, name := range []string{"image.tif", "sec_x1-2_y3-4.tif", "sec_xa-b_y1-2_z1-2.txt"} {
		_, err := Decode(name)
		var de *pipeerr.DecodeError
		if !errors.As(err, &de) {
			t.Errorf("Decode(%q): expected DecodeError, got %v", name, err)
		}
		if HasBounds(name) {
			t.Errorf("HasBounds(%q) = true", name)
		}
	}
}

func TestDecodeRejectsEmptyTiles(t *testing.T) {
	_, err := Decode("sec_x010-010_y000-100_z00-10.txt")
	if pipeerr.KindOf(err) != pipeerr.KindValidation {
		t.Fatalf("Expected validation error for zero-width tile, got %v", err)
	}
	_, err = Decode("sec_x000-100_y100-050_z00-10.txt")
	if pipeerr.KindOf(err) != pipeerr.KindValidation {
		t.Fatalf("Expected validation error for inverted tile, got %v", err)
	}
}

func TestFromOffsetDims(t *testing.T) {
	b, err := FromOffsetDims([3]int{100, 0, 0}, [3]int{100, 100, 10})
	if err != nil {
		t.Fatalf("FromOffsetDims failed: %v", err)
	}
	if b.Upper != [3]int{200, 100, 10} {
		t.Errorf("Unexpected upper bounds %v", b.Upper)
	}
	if _, err := FromOffsetDims([3]int{0, 0, 0}, [3]int{10, 0, 1}); err == nil {
		t.Error("Expected error for zero dims")
	}
}

func TestPlanCoversImage(t *testing.T) {
	whole := [3]int{250, 100, 10}
	tiles, err := Plan(whole, [3]int{100, 0, 0}, [3]int{10, 0, 0})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	want := [][2]int{{0, 100}, {90, 190}, {180, 250}}
	if len(tiles) != len(want) {
		t.Fatalf("Expected %d tiles, got %d: %v", len(want), len(tiles), tiles)
	}
	for i, b := range tiles {
		if b.Lower[0] != want[i][0] || b.Upper[0] != want[i][1] {
			t.Errorf("Tile %d x range = %d-%d, want %d-%d", i, b.Lower[0], b.Upper[0], want[i][0], want[i][1])
		}
		if !b.Within(whole) {
			t.Errorf("Tile %v leaves the image", b)
		}
	}

	names := make([]string, len(tiles))
	for i, b := range tiles {
		names[i] = Filename(b, whole, ".tif")
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("Expected filenames in spatial order, got %v", names)
	}
}

func TestPlanRejectsBadOverlap(t *testing.T) {
	if _, err := Plan([3]int{100, 100, 10}, [3]int{50, 0, 0}, [3]int{50, 0, 0}); err == nil {
		t.Error("Expected error when overlap equals section size")
	}
	if _, err := Plan([3]int{0, 100, 10}, [3]int{}, [3]int{}); err == nil {
		t.Error("Expected error for empty image")
	}
}
