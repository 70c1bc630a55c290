package reconstruction

import (
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"soaxsnakes/internal/models"
	"soaxsnakes/pkg/config"
	"soaxsnakes/pkg/imagedims"
	"soaxsnakes/pkg/pipeerr"
	"soaxsnakes/pkg/section"
	"soaxsnakes/pkg/snakejson"
)

// StageJoin names the joining stage in reports and the journal
const StageJoin = "join"

// ErrEmptyGroup is reported for a tile group without any tile JSON file,
// which usually means the tracer failed silently on that image
var ErrEmptyGroup = errors.New("tile group contains no snake JSON files")

// Joiner reassembles whole-image snake files from per-tile fragments.
//
// Tile groups are the immediate children of the directories at the search
// depth. Each group's tile files are read in lexicographic order, every
// snake is shifted by its tile's offset and all snakes are concatenated into
// one file named after the group. Snakes crossing a tile boundary stay as
// separate fragments.
type Joiner struct {
	cfg  config.JoinConfig
	opts Options

	mu        sync.Mutex
	summaries map[string]Summary
}

// NewJoiner creates a joiner
func NewJoiner(cfg config.JoinConfig, opts Options) *Joiner {
	return &Joiner{
		cfg:       cfg,
		opts:      opts.withDefaults(),
		summaries: make(map[string]Summary),
	}
}

// Process joins every tile group. Error semantics match Converter.Process.
func (j *Joiner) Process() error {
	if err := j.cfg.Validate(); err != nil {
		return err
	}

	tasks, err := j.plan()
	if err != nil {
		return err
	}
	j.opts.Logger.Info("joining sectioned snakes",
		"source", j.cfg.SourceDir, "target", j.cfg.TargetDir, "groups", len(tasks))

	var report pipeerr.Report
	runTasks(StageJoin, tasks, j.opts, &report)
	return report.Err()
}

// GetSummaries returns the statistics of every group joined so far, keyed
// by the group's path relative to the source root
func (j *Joiner) GetSummaries() map[string]Summary {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make(map[string]Summary, len(j.summaries))
	for k, v := range j.summaries {
		out[k] = v
	}
	return out
}

func (j *Joiner) plan() ([]task, error) {
	parents, err := dirsAtDepth(j.cfg.SourceDir, j.cfg.SearchDepth)
	if err != nil {
		return nil, err
	}

	var tasks []task
	for _, parent := range parents {
		groups, err := subdirs(parent)
		if err != nil {
			return nil, err
		}
		if len(groups) == 0 {
			continue
		}

		targetDir, err := mirrorDir(j.cfg.SourceDir, j.cfg.TargetDir, parent)
		if err != nil {
			return nil, err
		}
		for _, group := range groups {
			group := group
			dst := filepath.Join(targetDir, filepath.Base(group)+snakejson.Ext)
			item := relItem(j.cfg.SourceDir, group)
			tasks = append(tasks, task{
				item: item,
				run:  func() error { return j.joinGroup(item, group, dst) },
			})
		}
	}
	return tasks, nil
}

func (j *Joiner) joinGroup(item, groupDir, dstPath string) error {
	whole, err := j.wholeDims(filepath.Base(groupDir))
	if err != nil {
		return err
	}

	joined, err := JoinGroup(groupDir, whole)
	if err != nil {
		return err
	}
	for _, w := range joined.Warnings {
		j.opts.Logger.Warn("tile outside whole image", "group", item, "detail", w)
	}

	if err := snakejson.Save(dstPath, joined.File); err != nil {
		return err
	}

	sum := Summarize(joined.File.Snakes)
	j.mu.Lock()
	j.summaries[item] = sum
	j.mu.Unlock()

	j.opts.Logger.Info("joined tile group",
		"group", item, "tiles", joined.Tiles,
		"snakes", sum.Snakes, "points", sum.Points,
		"mean_points", sum.MeanPoints, "mean_length_px", sum.MeanLength,
		"mean_fg", sum.MeanFG, "mean_bg", sum.MeanBG)
	return nil
}

// wholeDims returns the configured whole-image extent, or reads it from the
// original image named after the group
func (j *Joiner) wholeDims(group string) ([3]int, error) {
	if !j.cfg.ImageDims.IsZero() {
		return [3]int(j.cfg.ImageDims), nil
	}
	path, err := imagedims.Find(j.cfg.ImageDir, group)
	if err != nil {
		return [3]int{}, err
	}
	return imagedims.Read(path)
}

// JoinResult is the outcome of joining one tile group
type JoinResult struct {
	// File is the whole-image snake file
	File models.SnakeFile

	// Tiles is the number of tile files read
	Tiles int

	// Warnings lists tiles reaching outside the whole image
	Warnings []string
}

// JoinGroup reads every tile JSON file in groupDir and shifts its snakes
// into the whole-image frame. whole is the extent of the original image;
// it is recorded as is and never derived from the tiles.
func JoinGroup(groupDir string, whole [3]int) (JoinResult, error) {
	files, err := filesWithExt(groupDir, snakejson.Ext)
	if err != nil {
		return JoinResult{}, err
	}
	if len(files) == 0 {
		return JoinResult{}, ErrEmptyGroup
	}

	res := JoinResult{
		File: models.SnakeFile{
			Snakes:   models.SnakeList{},
			Metadata: models.Metadata{DimsPixelsXYZ: whole},
		},
		Tiles: len(files),
	}
	for _, path := range files {
		tile, err := snakejson.Load(path)
		if err != nil {
			return JoinResult{}, err
		}
		bounds, err := tileFrame(path, tile.Metadata)
		if err != nil {
			return JoinResult{}, err
		}
		if !bounds.Within(whole) {
			res.Warnings = append(res.Warnings, filepath.Base(path)+" "+bounds.String())
		}
		res.File.Snakes = append(res.File.Snakes, Shift(tile.Snakes, bounds.Offset())...)
	}
	return res, nil
}

// tileFrame returns the bounds of a tile file from its metadata, checked
// against the bounds encoded in its filename when there are any
func tileFrame(path string, meta models.Metadata) (section.Bounds, error) {
	name := filepath.Base(path)
	if meta.OffsetPixelsXYZ == nil {
		return section.Bounds{}, pipeerr.Invalid("offset_pixels_xyz", "missing in tile file %s", name)
	}
	bounds, err := section.FromOffsetDims(*meta.OffsetPixelsXYZ, meta.DimsPixelsXYZ)
	if err != nil {
		return section.Bounds{}, errors.Wrapf(err, "tile file %s", name)
	}
	if !section.HasBounds(name) {
		return bounds, nil
	}

	encoded, err := section.Decode(name)
	if err != nil {
		return section.Bounds{}, err
	}
	if encoded != bounds {
		return section.Bounds{}, pipeerr.Invalid("dims_pixels_xyz",
			"metadata %s disagrees with filename %s", bounds, name)
	}
	return bounds, nil
}
