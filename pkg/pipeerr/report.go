package pipeerr

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// TaskError is a failure recorded for one task of a pipeline stage
type TaskError struct {
	Stage string
	Item  string
	Err   error
}

func (e TaskError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Item, e.Err)
}

func (e TaskError) Unwrap() error { return e.Err }

// Report collects task failures from concurrent workers. The zero value is
// ready to use.
type Report struct {
	mu     sync.Mutex
	errors []TaskError
}

// Add records a failure. Nil errors are ignored.
func (r *Report) Add(stage, item string, err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	r.errors = append(r.errors, TaskError{Stage: stage, Item: item, Err: err})
	r.mu.Unlock()
}

// Len returns the number of recorded failures
func (r *Report) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errors)
}

// Errors returns the recorded failures sorted by stage then item
func (r *Report) Errors() []TaskError {
	r.mu.Lock()
	out := make([]TaskError, len(r.errors))
	copy(out, r.errors)
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Stage != out[j].Stage {
			return out[i].Stage < out[j].Stage
		}
		return out[i].Item < out[j].Item
	})
	return out
}

// Err returns the report as an error, or nil when nothing failed
func (r *Report) Err() error {
	if r.Len() == 0 {
		return nil
	}
	return &RunError{Failures: r.Errors()}
}

// RunError is the end-of-run aggregate of every task failure
type RunError struct {
	Failures []TaskError
}

func (e *RunError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d task(s) failed:", len(e.Failures))
	for _, f := range e.Failures {
		b.WriteString("\n  ")
		b.WriteString(f.Error())
	}
	return b.String()
}

// Unwrap exposes the individual failures to errors.Is and errors.As
func (e *RunError) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f
	}
	return out
}
