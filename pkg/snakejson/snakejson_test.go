package snakejson

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"soaxsnakes/internal/models"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	offset := [3]int{100, 0, 30}
	spacing := [3]float64{0.1625, 0.1625, 0.5}
	orig := models.SnakeFile{
		Snakes: models.SnakeList{
			{
				{Pos: [3]float64{0.1 + 0.2, 1.0 / 3.0, math.Pi}, FG: 1234.5678901234, BG: 1e-17},
				{Pos: [3]float64{math.Nextafter(5, 6), 5, 0}, FG: 0, BG: -2.5},
			},
			{
				{Pos: [3]float64{105, 5, 0}, FG: 7, BG: 3},
			},
		},
		Metadata: models.Metadata{
			DimsPixelsXYZ:     [3]int{200, 100, 10},
			OffsetPixelsXYZ:   &offset,
			PixelSpacingUmXYZ: &spacing,
		},
	}

	path := filepath.Join(t.TempDir(), "tile.json")
	if err := Save(path, orig); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(got, orig) {
		t.Errorf("Round trip mismatch:\n got %+v\nwant %+v", got, orig)
	}
}

func TestOptionalMetadataOmitted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whole.json")
	err := Save(path, models.SnakeFile{Metadata: models.Metadata{DimsPixelsXYZ: [3]int{1, 2, 3}}})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(raw["metadata"], &meta); err != nil {
		t.Fatalf("Metadata is not an object: %v", err)
	}
	if _, ok := meta["offset_pixels_xyz"]; ok {
		t.Error("Expected no offset_pixels_xyz key")
	}
	if _, ok := meta["pixel_spacing_um_xyz"]; ok {
		t.Error("Expected no pixel_spacing_um_xyz key")
	}

	if string(raw["snakes"]) != "[]" {
		t.Errorf("Expected empty snake list to encode as [], got %s", raw["snakes"])
	}
}

func TestSaveDoesNotCreateDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "tile.json")
	if err := Save(path, models.SnakeFile{}); err == nil {
		t.Fatal("Expected error when parent directory is missing")
	}
	if _, err := os.Stat(filepath.Dir(path)); !os.IsNotExist(err) {
		t.Error("Save created the parent directory")
	}
}

func TestSaveLeavesNoTemporaryFiles(t *testing.T) {
	dir := t.TempDir()
	if err := Save(filepath.Join(dir, "a.json"), models.SnakeFile{}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "a.json" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Expected only a.json, found %v", names)
	}
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"snakes": [`), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for truncated JSON")
	}
}

func TestSaveLeavesInputUntouched(t *testing.T) {
	snakes := models.SnakeList{nil, {{Pos: [3]float64{1, 2, 3}}}}
	path := filepath.Join(t.TempDir(), "tile.json")
	if err := Save(path, models.SnakeFile{Snakes: snakes}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if snakes[0] != nil {
		t.Errorf("Save replaced the caller's nil snake with %v", snakes[0])
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Snakes[0] == nil || len(got.Snakes[0]) != 0 {
		t.Errorf("Expected an empty snake, got %#v", got.Snakes[0])
	}
}
