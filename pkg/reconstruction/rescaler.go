package reconstruction

import (
	"path/filepath"

	"soaxsnakes/pkg/config"
	"soaxsnakes/pkg/pipeerr"
	"soaxsnakes/pkg/snakejson"
)

// StageRescale names the unit rescaling stage in reports and the journal
const StageRescale = "rescale"

// Rescaler converts every snake JSON file at the search depth from pixels
// to micrometers, mirroring the source tree into the target tree
type Rescaler struct {
	cfg  config.RescaleConfig
	opts Options
}

// NewRescaler creates a rescaler
func NewRescaler(cfg config.RescaleConfig, opts Options) *Rescaler {
	return &Rescaler{cfg: cfg, opts: opts.withDefaults()}
}

// Scale returns the transform configured for this rescaler
func (r *Rescaler) Scale() Scale {
	return Scale{SpacingUm: [3]float64(r.cfg.SpacingUm), Lateral: r.cfg.LateralScale}
}

// Process rescales every file. Error semantics match Converter.Process.
func (r *Rescaler) Process() error {
	if err := r.cfg.Validate(); err != nil {
		return err
	}

	dirs, err := dirsAtDepth(r.cfg.SourceDir, r.cfg.SearchDepth)
	if err != nil {
		return err
	}

	var tasks []task
	for _, dir := range dirs {
		files, err := filesWithExt(dir, snakejson.Ext)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			continue
		}
		targetDir, err := mirrorDir(r.cfg.SourceDir, r.cfg.TargetDir, dir)
		if err != nil {
			return err
		}
		for _, src := range files {
			src := src
			dst := filepath.Join(targetDir, filepath.Base(src))
			tasks = append(tasks, task{
				item: relItem(r.cfg.SourceDir, src),
				run:  func() error { return r.RescaleTo(src, dst) },
			})
		}
	}

	r.opts.Logger.Info("rescaling snakes to micrometers",
		"source", r.cfg.SourceDir, "target", r.cfg.TargetDir,
		"files", len(tasks), "spacing_um", r.cfg.SpacingUm.String(),
		"lateral_scale", r.cfg.LateralScale)

	var report pipeerr.Report
	runTasks(StageRescale, tasks, r.opts, &report)
	return report.Err()
}

// RescaleTo loads one pixel-space snake file and writes its micrometer
// counterpart to dstPath
func (r *Rescaler) RescaleTo(srcPath, dstPath string) error {
	f, err := snakejson.Load(srcPath)
	if err != nil {
		return err
	}
	scaled, err := RescaleFile(f, r.Scale())
	if err != nil {
		return err
	}
	return snakejson.Save(dstPath, scaled)
}
