package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/unixpickle/essentials"

	"soaxsnakes/pkg/config"
	"soaxsnakes/pkg/journal"
	"soaxsnakes/pkg/pipeerr"
	"soaxsnakes/pkg/reconstruction"
	"soaxsnakes/pkg/section"
)

const usage = `Usage: soaxsnakes <command> [flags]

Commands:
  convert   convert per-tile snake text files into tile JSON files
  join      join tile JSON files into one whole-image file per tile group
  rescale   convert whole-image snake files from pixels to micrometers
  plan      print the tile filenames for a sectioning grid
  journal   list the task outcomes of the latest recorded run
  config    write a default configuration file

Run 'soaxsnakes <command> -h' for the flags of a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "convert":
		err = runConvert(args)
	case "join":
		err = runJoin(args)
	case "rescale":
		err = runRescale(args)
	case "plan":
		err = runPlan(args)
	case "journal":
		err = runJournal(args)
	case "config":
		err = runConfig(args)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		reportError(err)
		os.Exit(1)
	}
}

// reportError prints a fatal error, or every task failure of a stage run
func reportError(err error) {
	var runErr *pipeerr.RunError
	if !errors.As(err, &runErr) {
		fmt.Fprintf(os.Stderr, "Error (%s): %v\n", pipeerr.KindOf(err), err)
		return
	}
	fmt.Fprintf(os.Stderr, "%d task(s) failed:\n", len(runErr.Failures))
	for _, f := range runErr.Failures {
		fmt.Fprintf(os.Stderr, "  [%s] %s (%s): %v\n", f.Stage, f.Item, pipeerr.KindOf(f.Err), f.Err)
	}
}

// loadConfig reads the -config file named in args, if any, before the
// remaining flags are bound to its values
func loadConfig(args []string) config.Config {
	path := ""
	for i, a := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "config" {
			continue
		}
		if hasValue {
			path = value
		} else if i+1 < len(args) {
			path = args[i+1]
		}
	}

	cfg := config.DefaultConfig()
	if path != "" {
		var err error
		cfg, err = config.LoadConfigFile(path)
		essentials.Must(err)
	}
	return cfg
}

// commonFlags registers the flags every stage command accepts
func commonFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.String("config", "", "YAML configuration file (flags override its values)")
	fs.IntVar(&cfg.Processing.NumWorkers, "workers", cfg.Processing.NumWorkers, "number of tasks processed concurrently")
	fs.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "log level: debug, info, warn or error")
	fs.StringVar(&cfg.Logging.Format, "log-format", cfg.Logging.Format, "log format: text or json")
	fs.StringVar(&cfg.Journal.Path, "journal", cfg.Journal.Path, "SQLite run journal (disabled when empty)")
}

// setup validates the configuration and builds the shared stage options.
// The returned function closes the journal.
func setup(cfg config.Config) (reconstruction.Options, func(), error) {
	if err := cfg.Validate(); err != nil {
		return reconstruction.Options{}, nil, err
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return reconstruction.Options{}, nil, err
	}
	slog.SetDefault(logger)

	opts := reconstruction.Options{
		NumWorkers: cfg.Processing.NumWorkers,
		Logger:     logger,
	}
	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return reconstruction.Options{}, nil, err
		}
		opts.Journal = j
		logger.Info("journal opened", "path", cfg.Journal.Path, "run_id", j.RunID())
	}

	closeFn := func() {
		if err := opts.Journal.Close(); err != nil {
			logger.Error("failed to close journal", "error", err)
		}
	}
	return opts, closeFn, nil
}

func newLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, pipeerr.Invalid("logging.level", "unknown level %q", cfg.Level)
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts)), nil
}

// runStage runs one pipeline stage and logs its duration
func runStage(name string, opts reconstruction.Options, process func() error) error {
	start := time.Now()
	err := process()
	opts.Logger.Info("command finished", "command", name,
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
		"ok", err == nil)
	return err
}

func runConvert(args []string) error {
	cfg := loadConfig(args)
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	commonFlags(fs, &cfg)
	c := &cfg.Convert
	fs.StringVar(&c.SourceDir, "source", c.SourceDir, "root of the snake text tree")
	fs.StringVar(&c.TargetDir, "target", c.TargetDir, "root of the tile JSON tree")
	fs.IntVar(&c.SearchDepth, "depth", c.SearchDepth, "directory levels below the source root holding snake files")
	fs.StringVar(&c.Bounds, "bounds", c.Bounds, "tile bounds mode: infer or explicit")
	fs.Var(&c.Offset, "offset", "tile offset x,y,z for explicit bounds")
	fs.Var(&c.Dims, "dims", "tile dims x,y,z for explicit bounds")
	fs.StringVar(&c.Ext, "ext", c.Ext, "extension of snake text files")
	fs.Parse(args)

	opts, closeFn, err := setup(cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	return runStage("convert", opts, reconstruction.NewConverter(cfg.Convert, opts).Process)
}

func runJoin(args []string) error {
	cfg := loadConfig(args)
	fs := flag.NewFlagSet("join", flag.ExitOnError)
	commonFlags(fs, &cfg)
	c := &cfg.Join
	fs.StringVar(&c.SourceDir, "source", c.SourceDir, "root of the tile JSON tree")
	fs.StringVar(&c.TargetDir, "target", c.TargetDir, "root of the joined JSON tree")
	fs.IntVar(&c.SearchDepth, "depth", c.SearchDepth, "directory levels below the source root holding tile groups")
	fs.StringVar(&c.ImageDir, "images", c.ImageDir, "directory of the original TIFFs, named after the tile groups")
	fs.Var(&c.ImageDims, "image-dims", "whole-image dims x,y,z applied to every group")
	fs.Parse(args)

	opts, closeFn, err := setup(cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	return runStage("join", opts, reconstruction.NewJoiner(cfg.Join, opts).Process)
}

func runRescale(args []string) error {
	cfg := loadConfig(args)
	fs := flag.NewFlagSet("rescale", flag.ExitOnError)
	commonFlags(fs, &cfg)
	c := &cfg.Rescale
	fs.StringVar(&c.SourceDir, "source", c.SourceDir, "root of the pixel-space JSON tree")
	fs.StringVar(&c.TargetDir, "target", c.TargetDir, "root of the micrometer JSON tree")
	fs.IntVar(&c.SearchDepth, "depth", c.SearchDepth, "directory levels below the source root holding JSON files")
	fs.Var(&c.SpacingUm, "spacing", "pixel spacing x,y,z in micrometers")
	fs.Float64Var(&c.LateralScale, "lateral-scale", c.LateralScale, "in-plane resize factor applied before tracing")
	fs.Parse(args)

	opts, closeFn, err := setup(cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	return runStage("rescale", opts, reconstruction.NewRescaler(cfg.Rescale, opts).Process)
}

func runPlan(args []string) error {
	cfg := loadConfig(args)
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	fs.String("config", "", "YAML configuration file (flags override its values)")
	c := &cfg.Section
	fs.Var(&c.WholeDims, "whole", "whole-image dims x,y,z")
	fs.Var(&c.MaxSize, "max-size", "maximum tile size x,y,z")
	fs.Var(&c.Overlap, "overlap", "overlap between neighbouring tiles x,y,z")
	fs.StringVar(&c.Ext, "ext", c.Ext, "extension of the tile files")
	fs.Parse(args)

	tiles, err := section.Plan([3]int(c.WholeDims), [3]int(c.MaxSize), [3]int(c.Overlap))
	if err != nil {
		return err
	}
	for _, b := range tiles {
		fmt.Println(section.Filename(b, [3]int(c.WholeDims), c.Ext))
	}
	return nil
}

func runJournal(args []string) error {
	cfg := loadConfig(args)
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	fs.String("config", "", "YAML configuration file (flags override its values)")
	fs.StringVar(&cfg.Journal.Path, "journal", cfg.Journal.Path, "SQLite run journal")
	runID := fs.String("run", "", "run id (defaults to the latest run)")
	all := fs.Bool("all", false, "list successful tasks too")
	fs.Parse(args)

	if cfg.Journal.Path == "" {
		return pipeerr.Invalid("journal.path", "must be set")
	}
	r, err := journal.OpenReader(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer r.Close()

	id := *runID
	if id == "" {
		if id, err = r.LatestRun(); err != nil {
			return err
		}
		if id == "" {
			fmt.Println("journal is empty")
			return nil
		}
	}

	events, err := r.Events(id, !*all)
	if err != nil {
		return err
	}
	fmt.Printf("run %s: %d event(s)\n", id, len(events))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tITEM\tSTATUS\tKIND\tDURATION\tERROR")
	for _, e := range events {
		d := time.Duration(e.DurationUs) * time.Microsecond
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", e.Stage, e.Item, e.Status, e.ErrorKind, d, e.Error)
	}
	return w.Flush()
}

func runConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	output := fs.String("output", "soaxsnakes.yaml", "path of the configuration file to write")
	fs.Parse(args)

	if _, err := os.Stat(*output); err == nil {
		return errors.Errorf("%s already exists", *output)
	}
	if err := config.CreateDefaultConfigFile(*output); err != nil {
		return err
	}
	fmt.Printf("Default configuration written to %s\n", *output)
	return nil
}
