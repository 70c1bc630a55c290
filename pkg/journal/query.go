package journal

import (
	"database/sql"

	"github.com/pkg/errors"
)

// Reader queries a journal written by earlier runs
type Reader struct {
	db *sql.DB
}

// OpenReader opens the journal at path for queries
func OpenReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply journal schema")
	}
	return &Reader{db: db}, nil
}

// Close closes the database
func (r *Reader) Close() error {
	return r.db.Close()
}

// LatestRun returns the id of the most recently recorded run, or "" if the
// journal is empty
func (r *Reader) LatestRun() (string, error) {
	var runID string
	err := r.db.QueryRow(`SELECT run_id FROM task_events ORDER BY id DESC LIMIT 1`).Scan(&runID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "query latest run")
	}
	return runID, nil
}

// Events returns the events of runID in insertion order. When failedOnly is
// set only failed tasks are returned.
func (r *Reader) Events(runID string, failedOnly bool) ([]Event, error) {
	query := `SELECT run_id, stage, item, status, COALESCE(error_kind, ''), COALESCE(error, ''), duration_us, timestamp
		FROM task_events WHERE run_id = ?`
	if failedOnly {
		query += ` AND status = 'failed'`
	}
	query += ` ORDER BY id`

	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, errors.Wrap(err, "query events")
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.RunID, &e.Stage, &e.Item, &e.Status, &e.ErrorKind, &e.Error, &e.DurationUs, &e.Timestamp); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "iterate events")
}
