package reconstruction

import (
	"path/filepath"

	"github.com/pkg/errors"

	"soaxsnakes/internal/models"
	"soaxsnakes/pkg/config"
	"soaxsnakes/pkg/pipeerr"
	"soaxsnakes/pkg/section"
	"soaxsnakes/pkg/snakejson"
	"soaxsnakes/pkg/soaxtext"
)

// StageConvert names the tile conversion stage in reports and the journal
const StageConvert = "convert"

// Converter turns the tracer's per-tile snake text into per-tile JSON files.
//
// For every snake text file at the configured search depth it:
//  1. determines the tile bounds from the filename (or the explicit
//     offset and dims),
//  2. parses the snake text,
//  3. clamps every point into the tile's own pixel range,
//  4. writes a JSON snake file carrying the tile dims and offset at the
//     mirrored location in the target tree.
type Converter struct {
	cfg  config.ConvertConfig
	opts Options
}

// NewConverter creates a converter. The configuration is copied; later
// changes to the caller's value have no effect.
func NewConverter(cfg config.ConvertConfig, opts Options) *Converter {
	return &Converter{cfg: cfg, opts: opts.withDefaults()}
}

// Process converts every tile. A structural problem (unreadable source tree,
// output path conflict) aborts before any tile is touched and is returned
// as is. Otherwise every tile is attempted and the failures are returned
// together as a *pipeerr.RunError.
func (c *Converter) Process() error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	tasks, err := c.plan()
	if err != nil {
		return err
	}
	c.opts.Logger.Info("converting snake files",
		"source", c.cfg.SourceDir, "target", c.cfg.TargetDir,
		"tiles", len(tasks), "bounds", c.cfg.Bounds)

	var report pipeerr.Report
	runTasks(StageConvert, tasks, c.opts, &report)
	return report.Err()
}

// plan lists the tiles and mirrors the directory tree before any task runs
func (c *Converter) plan() ([]task, error) {
	dirs, err := dirsAtDepth(c.cfg.SourceDir, c.cfg.SearchDepth)
	if err != nil {
		return nil, err
	}

	var tasks []task
	for _, dir := range dirs {
		files, err := filesWithExt(dir, c.cfg.Ext)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			continue
		}

		targetDir, err := mirrorDir(c.cfg.SourceDir, c.cfg.TargetDir, dir)
		if err != nil {
			return nil, err
		}
		for _, src := range files {
			src := src
			dst := filepath.Join(targetDir, swapExt(filepath.Base(src), snakejson.Ext))
			tasks = append(tasks, task{
				item: relItem(c.cfg.SourceDir, src),
				run:  func() error { return c.ConvertTile(src, dst) },
			})
		}
	}
	return tasks, nil
}

// ConvertTile converts a single snake text file into a JSON tile file
func (c *Converter) ConvertTile(srcPath, dstPath string) error {
	bounds, err := c.tileBounds(srcPath)
	if err != nil {
		return err
	}

	res, err := soaxtext.ParseFile(srcPath)
	if err != nil {
		return err
	}

	dims := bounds.Dims()
	offset := bounds.Offset()
	tile := models.SnakeFile{
		Snakes: Clamp(res.Snakes, dims),
		Metadata: models.Metadata{
			DimsPixelsXYZ:   dims,
			OffsetPixelsXYZ: &offset,
		},
	}
	if err := snakejson.Save(dstPath, tile); err != nil {
		return err
	}

	c.opts.Logger.Debug("converted tile",
		"source", srcPath, "snakes", len(tile.Snakes),
		"points", tile.Snakes.NumPoints(), "bounds", bounds.String())
	return nil
}

// tileBounds resolves the bounds of the tile stored at path
func (c *Converter) tileBounds(path string) (section.Bounds, error) {
	if c.cfg.Bounds != config.BoundsExplicit {
		return section.Decode(path)
	}

	explicit, err := section.FromOffsetDims(c.cfg.Offset, c.cfg.Dims)
	if err != nil {
		return section.Bounds{}, err
	}
	if section.HasBounds(path) {
		inferred, err := section.Decode(path)
		if err != nil {
			return section.Bounds{}, errors.Wrap(err, "filename bounds")
		}
		// the joiner checks tile metadata against the filename
		if inferred != explicit {
			return section.Bounds{}, pipeerr.Invalid("offset_pixels_xyz",
				"explicit bounds %s disagree with %s encoded in %s",
				explicit, inferred, filepath.Base(path))
		}
	}
	return explicit, nil
}
