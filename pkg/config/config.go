// Package config provides configuration loading and management for soaxsnakes.
// It handles loading configuration from YAML files and provides default values.
// A Config is built once before a run and handed by value to each stage.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"soaxsnakes/pkg/pipeerr"
)

// Bounds modes for the tile converter
const (
	// BoundsInfer decodes each tile's bounds from its sec_x#-#_y#-#_z#-# filename
	BoundsInfer = "infer"

	// BoundsExplicit uses the configured offset and dims for every tile
	BoundsExplicit = "explicit"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters shared by every stage
	Processing ProcessingConfig `yaml:"processing"`

	// Logging controls the structured log output
	Logging LoggingConfig `yaml:"logging"`

	// Journal configures the persistent run journal
	Journal JournalConfig `yaml:"journal"`

	// Convert configures the per-tile snake converter
	Convert ConvertConfig `yaml:"convert"`

	// Join configures the sectioned-snake joiner
	Join JoinConfig `yaml:"join"`

	// Rescale configures the unit rescaler
	Rescale RescaleConfig `yaml:"rescale"`

	// Section configures the tile planner
	Section SectionConfig `yaml:"section"`
}

// ProcessingConfig holds worker pool settings
type ProcessingConfig struct {
	// NumWorkers is the number of tasks processed concurrently
	NumWorkers int `yaml:"numWorkers"`
}

// LoggingConfig selects the log level and handler
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`

	// Format is text or json
	Format string `yaml:"format"`
}

// JournalConfig points at the SQLite run journal. An empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// ConvertConfig holds the tile converter parameters
type ConvertConfig struct {
	// SourceDir is the root of the tracer's snake text output
	SourceDir string `yaml:"sourceDir"`

	// TargetDir is the root the JSON tile files are mirrored into
	TargetDir string `yaml:"targetDir"`

	// SearchDepth is how many directory levels below SourceDir the snake
	// text files live
	SearchDepth int `yaml:"searchDepth"`

	// Bounds is either "infer" or "explicit"
	Bounds string `yaml:"bounds"`

	// Offset and Dims are used for every tile in explicit mode
	Offset IntXYZ `yaml:"offset"`
	Dims   IntXYZ `yaml:"dims"`

	// Ext is the extension of snake text files
	Ext string `yaml:"ext"`
}

// JoinConfig holds the sectioned-snake joiner parameters
type JoinConfig struct {
	// SourceDir is the root of the tile JSON tree
	SourceDir string `yaml:"sourceDir"`

	// TargetDir receives one whole-image JSON file per tile group
	TargetDir string `yaml:"targetDir"`

	// SearchDepth is how many directory levels below SourceDir the
	// directories holding tile groups live
	SearchDepth int `yaml:"searchDepth"`

	// ImageDir holds the original unsectioned TIFFs, named after the tile
	// group directories. Used when ImageDims is unset.
	ImageDir string `yaml:"imageDir"`

	// ImageDims is the whole-image extent applied to every group
	ImageDims IntXYZ `yaml:"imageDims"`
}

// RescaleConfig holds the unit rescaler parameters
type RescaleConfig struct {
	SourceDir   string `yaml:"sourceDir"`
	TargetDir   string `yaml:"targetDir"`
	SearchDepth int    `yaml:"searchDepth"`

	// SpacingUm is the physical pixel spacing in micrometers. A z spacing
	// of zero is only accepted for 2D data.
	SpacingUm FloatXYZ `yaml:"spacingUm"`

	// LateralScale is the in-plane resize factor applied to the images
	// before tracing
	LateralScale float64 `yaml:"lateralScale"`
}

// SectionConfig holds the tile planner parameters
type SectionConfig struct {
	WholeDims IntXYZ `yaml:"wholeDims"`
	MaxSize   IntXYZ `yaml:"maxSize"`
	Overlap   IntXYZ `yaml:"overlap"`
	Ext       string `yaml:"ext"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() Config {
	var cfg Config

	cfg.Processing.NumWorkers = runtime.NumCPU() // Use all available cores by default

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	cfg.Convert.Bounds = BoundsInfer
	cfg.Convert.Ext = ".txt"

	cfg.Rescale.LateralScale = 1.0

	cfg.Section.Ext = ".tif"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// LoadConfigFile loads configuration from a YAML file that must exist.
// Use it for paths the user named explicitly.
func LoadConfigFile(configPath string) (Config, error) {
	info, err := os.Stat(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("error reading config file: %w", err)
	}
	if info.IsDir() {
		return Config{}, fmt.Errorf("error reading config file: %s is a directory", configPath)
	}
	return LoadConfig(configPath)
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

// Validate checks the settings shared by every stage
func (c Config) Validate() error {
	if c.Processing.NumWorkers < 1 {
		return pipeerr.Invalid("processing.numWorkers", "must be at least 1, got %d", c.Processing.NumWorkers)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return pipeerr.Invalid("logging.format", "unknown format %q", c.Logging.Format)
	}
	return nil
}

// Validate checks the converter settings
func (c ConvertConfig) Validate() error {
	if err := checkDirs("convert", c.SourceDir, c.TargetDir, c.SearchDepth); err != nil {
		return err
	}
	switch c.Bounds {
	case BoundsInfer:
	case BoundsExplicit:
		for i, d := range c.Dims {
			if d <= 0 {
				return pipeerr.Invalid("convert.dims", "axis %d must be positive in explicit mode, got %d", i, d)
			}
		}
		for i, o := range c.Offset {
			if o < 0 {
				return pipeerr.Invalid("convert.offset", "axis %d must not be negative, got %d", i, o)
			}
		}
	default:
		return pipeerr.Invalid("convert.bounds", "must be %q or %q, got %q", BoundsInfer, BoundsExplicit, c.Bounds)
	}
	if c.Ext == "" {
		return pipeerr.Invalid("convert.ext", "must not be empty")
	}
	return nil
}

// Validate checks the joiner settings
func (c JoinConfig) Validate() error {
	if err := checkDirs("join", c.SourceDir, c.TargetDir, c.SearchDepth); err != nil {
		return err
	}
	if c.ImageDims.IsZero() {
		if c.ImageDir == "" {
			return pipeerr.Invalid("join", "either imageDims or imageDir is required")
		}
		return nil
	}
	for i, d := range c.ImageDims {
		if d <= 0 {
			return pipeerr.Invalid("join.imageDims", "axis %d must be positive, got %d", i, d)
		}
	}
	return nil
}

// Validate checks the rescaler settings
func (c RescaleConfig) Validate() error {
	if err := checkDirs("rescale", c.SourceDir, c.TargetDir, c.SearchDepth); err != nil {
		return err
	}
	if c.SpacingUm[0] <= 0 || c.SpacingUm[1] <= 0 {
		return pipeerr.Invalid("rescale.spacingUm", "x and y spacing must be positive, got %v", c.SpacingUm)
	}
	if c.SpacingUm[2] < 0 {
		return pipeerr.Invalid("rescale.spacingUm", "z spacing must not be negative, got %v", c.SpacingUm[2])
	}
	if c.LateralScale <= 0 {
		return pipeerr.Invalid("rescale.lateralScale", "must be positive, got %v", c.LateralScale)
	}
	return nil
}

func checkDirs(stage, source, target string, depth int) error {
	if source == "" {
		return pipeerr.Invalid(stage+".sourceDir", "must be set")
	}
	if target == "" {
		return pipeerr.Invalid(stage+".targetDir", "must be set")
	}
	if depth < 0 {
		return pipeerr.Invalid(stage+".searchDepth", "must not be negative, got %d", depth)
	}
	return nil
}
