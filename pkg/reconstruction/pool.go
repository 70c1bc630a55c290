package reconstruction

import (
	"log/slog"
	"runtime"
	"time"

	"soaxsnakes/pkg/journal"
	"soaxsnakes/pkg/pipeerr"
)

// Options holds the run-wide collaborators shared by every stage
type Options struct {
	// NumWorkers bounds the number of tasks processed at once.
	// Defaults to the number of CPUs.
	NumWorkers int

	// Logger receives progress and per-task diagnostics.
	// Defaults to slog.Default().
	Logger *slog.Logger

	// Journal, when set, records the outcome of every task
	Journal *journal.Journal
}

func (o Options) withDefaults() Options {
	if o.NumWorkers < 1 {
		o.NumWorkers = runtime.NumCPU()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// task is one independent unit of work in a stage
type task struct {
	// item names the tile, group or file for reporting
	item string
	run  func() error
}

// runTasks processes tasks on a bounded worker pool. Failures are recorded
// in report and never stop sibling tasks. It returns once every task has
// finished.
func runTasks(stage string, tasks []task, opts Options, report *pipeerr.Report) {
	type taskResult struct {
		item string
		err  error
	}

	jobs := make(chan task)
	results := make(chan taskResult)

	workers := opts.NumWorkers
	if workers > len(tasks) {
		workers = len(tasks)
	}
	for w := 0; w < workers; w++ {
		go func() {
			for t := range jobs {
				start := time.Now()
				err := t.run()
				opts.Journal.Record(stage, t.item, start, err)
				results <- taskResult{item: t.item, err: err}
			}
		}()
	}

	go func() {
		for _, t := range tasks {
			jobs <- t
		}
		close(jobs)
	}()

	// Collect results
	failed := 0
	for completed := 1; completed <= len(tasks); completed++ {
		res := <-results
		if res.err != nil {
			failed++
			report.Add(stage, res.item, res.err)
			opts.Logger.Warn("task failed",
				"stage", stage, "item", res.item,
				"kind", pipeerr.KindOf(res.err), "error", res.err)
		}

		progress := float64(completed) / float64(len(tasks)) * 100
		opts.Logger.Debug("task finished",
			"stage", stage, "item", res.item,
			"progress", progress)
	}

	opts.Logger.Info("stage finished",
		"stage", stage, "tasks", len(tasks), "failed", failed)
}
