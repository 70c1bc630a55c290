// Package journal keeps an append-only SQLite record of every task outcome
// of a pipeline run, so failed tiles can be listed after the process exits.
package journal

import (
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	_ "modernc.org/sqlite"

	"soaxsnakes/pkg/pipeerr"
)

// Schema for the task_events table. Open applies it.
const Schema = `
CREATE TABLE IF NOT EXISTS task_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	stage TEXT NOT NULL,
	item TEXT NOT NULL,
	status TEXT NOT NULL,
	error_kind TEXT,
	error TEXT,
	duration_us INTEGER NOT NULL,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_task_events_run ON task_events(run_id);
CREATE INDEX IF NOT EXISTS idx_task_events_failed ON task_events(run_id, status) WHERE status = 'failed';
`

// Task statuses
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Event is one task outcome
type Event struct {
	RunID      string
	Stage      string
	Item       string
	Status     string
	ErrorKind  string
	Error      string
	DurationUs int64
	Timestamp  int64
}

// Journal persists events asynchronously. A nil *Journal is valid and
// records nothing.
type Journal struct {
	db    *sql.DB
	runID string
	ch    chan *Event
	done  chan struct{}
	once  sync.Once
}

// Open opens (or creates) the journal database at path and starts a new run
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply journal schema")
	}

	j := &Journal{
		db:    db,
		runID: uuid.NewString(),
		ch:    make(chan *Event, 1024),
		done:  make(chan struct{}),
	}
	go j.flushLoop()
	return j, nil
}

// RunID identifies the current run
func (j *Journal) RunID() string {
	if j == nil {
		return ""
	}
	return j.runID
}

// Record queues the outcome of one task. Unlike a trace sink the journal
// never drops events; Record blocks when the buffer is full.
func (j *Journal) Record(stage, item string, started time.Time, err error) {
	if j == nil {
		return
	}
	e := &Event{
		RunID:      j.runID,
		Stage:      stage,
		Item:       item,
		Status:     StatusOK,
		DurationUs: time.Since(started).Microseconds(),
		Timestamp:  time.Now().UnixMilli(),
	}
	if err != nil {
		e.Status = StatusFailed
		e.ErrorKind = string(pipeerr.KindOf(err))
		e.Error = err.Error()
	}
	j.ch <- e
}

// Close drains the buffer and closes the database
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	var err error
	j.once.Do(func() {
		close(j.ch)
		<-j.done
		err = j.db.Close()
	})
	return err
}

func (j *Journal) flushLoop() {
	defer close(j.done)

	batch := make([]*Event, 0, 64)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-j.ch:
			if !ok {
				j.flushBatch(batch)
				return
			}
			batch = append(batch, e)
			if len(batch) >= 64 {
				j.flushBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				j.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (j *Journal) flushBatch(batch []*Event) {
	if len(batch) == 0 {
		return
	}

	tx, err := j.db.Begin()
	if err != nil {
		slog.Error("journal: begin tx", "error", err)
		return
	}

	stmt, err := tx.Prepare(`INSERT INTO task_events (run_id, stage, item, status, error_kind, error, duration_us, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		slog.Error("journal: prepare", "error", err)
		return
	}
	defer stmt.Close()

	for _, e := range batch {
		if _, err := stmt.Exec(e.RunID, e.Stage, e.Item, e.Status, e.ErrorKind, e.Error, e.DurationUs, e.Timestamp); err != nil {
			slog.Error("journal: insert", "error", err, "stage", e.Stage, "item", e.Item)
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("journal: commit", "error", err)
	}
}
