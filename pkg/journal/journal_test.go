package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"

	"soaxsnakes/pkg/pipeerr"
)

func TestJournalRecordsOutcomes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	runID := j.RunID()
	if runID == "" {
		t.Fatal("Expected a run id")
	}

	start := time.Now()
	j.Record("convert", "a/sec_x0-10_y0-10_z0-1.txt", start, nil)
	j.Record("convert", "a/sec_x10-20_y0-10_z0-1.txt", start, &pipeerr.ParseError{Line: 40, Err: errors.New("bad row")})
	j.Record("join", "a", start, nil)
	if err := j.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader failed: %v", err)
	}
	defer r.Close()

	latest, err := r.LatestRun()
	if err != nil {
		t.Fatalf("LatestRun failed: %v", err)
	}
	if latest != runID {
		t.Errorf("Expected latest run %s, got %s", runID, latest)
	}

	all, err := r.Events(runID, false)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(all))
	}

	failed, err := r.Events(runID, true)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(failed) != 1 {
		t.Fatalf("Expected 1 failed event, got %d", len(failed))
	}
	if failed[0].ErrorKind != string(pipeerr.KindParse) || failed[0].Status != StatusFailed {
		t.Errorf("Unexpected failed event: %+v", failed[0])
	}
}

func TestNilJournalIsNoop(t *testing.T) {
	var j *Journal
	j.Record("convert", "x", time.Now(), errors.New("ignored"))
	if j.RunID() != "" {
		t.Error("Expected empty run id")
	}
	if err := j.Close(); err != nil {
		t.Errorf("Close on nil journal failed: %v", err)
	}
}

func TestEmptyJournal(t *testing.T) {
	r, err := OpenReader(filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatalf("OpenReader failed: %v", err)
	}
	defer r.Close()

	latest, err := r.LatestRun()
	if err != nil {
		t.Fatalf("LatestRun failed: %v", err)
	}
	if latest != "" {
		t.Errorf("Expected no run, got %q", latest)
	}
}
