package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/kiranakit/reconcile/pkg/match"
	"github.com/kiranakit/reconcile/pkg/segment"
	"github.com/kiranakit/reconcile/pkg/validate"
)

const (
	EnvPipelineRowHeightFactor     = "RECONCILE_PIPELINE_ROW_HEIGHT_FACTOR"
	EnvPipelineAutoThreshold       = "RECONCILE_PIPELINE_AUTO_THRESHOLD"
	EnvPipelineAmbiguousThreshold  = "RECONCILE_PIPELINE_AMBIGUOUS_THRESHOLD"
	EnvPipelineTieWindow           = "RECONCILE_PIPELINE_TIE_WINDOW"
	EnvPipelineArithmeticTolerance = "RECONCILE_PIPELINE_ARITHMETIC_TOLERANCE"
	EnvPipelineMinConfidence       = "RECONCILE_PIPELINE_MIN_CONFIDENCE"
)

// PipelineConfig holds tunable extraction, matching, and validation
// parameters. The defaults are starting points meant to be calibrated
// against real invoice samples.
type PipelineConfig struct {
	RowHeightFactor     float64 `toml:"row_height_factor"`
	AutoThreshold       float64 `toml:"auto_threshold"`
	AmbiguousThreshold  float64 `toml:"ambiguous_threshold"`
	TieWindow           float64 `toml:"tie_window"`
	ArithmeticTolerance float64 `toml:"arithmetic_tolerance"`
	MinConfidence       float64 `toml:"min_confidence"`
}

// MatchConfig returns the matcher decision thresholds.
func (c *PipelineConfig) MatchConfig() match.Config {
	return match.Config{
		AutoThreshold:      c.AutoThreshold,
		AmbiguousThreshold: c.AmbiguousThreshold,
		TieWindow:          c.TieWindow,
	}
}

// ValidateConfig returns the row validation parameters.
func (c *PipelineConfig) ValidateConfig() validate.Config {
	return validate.Config{
		Tolerance:     c.ArithmeticTolerance,
		MinConfidence: c.MinConfidence,
	}
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *PipelineConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *PipelineConfig) Merge(overlay *PipelineConfig) {
	if overlay.RowHeightFactor != 0 {
		c.RowHeightFactor = overlay.RowHeightFactor
	}
	if overlay.AutoThreshold != 0 {
		c.AutoThreshold = overlay.AutoThreshold
	}
	if overlay.AmbiguousThreshold != 0 {
		c.AmbiguousThreshold = overlay.AmbiguousThreshold
	}
	if overlay.TieWindow != 0 {
		c.TieWindow = overlay.TieWindow
	}
	if overlay.ArithmeticTolerance != 0 {
		c.ArithmeticTolerance = overlay.ArithmeticTolerance
	}
	if overlay.MinConfidence != 0 {
		c.MinConfidence = overlay.MinConfidence
	}
}

func (c *PipelineConfig) loadDefaults() {
	if c.RowHeightFactor == 0 {
		c.RowHeightFactor = segment.DefaultHeightFactor
	}
	if c.AutoThreshold == 0 {
		c.AutoThreshold = match.DefaultAutoThreshold
	}
	if c.AmbiguousThreshold == 0 {
		c.AmbiguousThreshold = match.DefaultAmbiguousThreshold
	}
	if c.TieWindow == 0 {
		c.TieWindow = match.DefaultTieWindow
	}
	if c.ArithmeticTolerance == 0 {
		c.ArithmeticTolerance = validate.DefaultTolerance
	}
	if c.MinConfidence == 0 {
		c.MinConfidence = validate.DefaultMinConfidence
	}
}

func (c *PipelineConfig) loadEnv() {
	for env, field := range map[string]*float64{
		EnvPipelineRowHeightFactor:     &c.RowHeightFactor,
		EnvPipelineAutoThreshold:       &c.AutoThreshold,
		EnvPipelineAmbiguousThreshold:  &c.AmbiguousThreshold,
		EnvPipelineTieWindow:           &c.TieWindow,
		EnvPipelineArithmeticTolerance: &c.ArithmeticTolerance,
		EnvPipelineMinConfidence:       &c.MinConfidence,
	} {
		if v := os.Getenv(env); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*field = f
			}
		}
	}
}

func (c *PipelineConfig) validate() error {
	if c.RowHeightFactor <= 0 || c.RowHeightFactor > 2 {
		return fmt.Errorf("invalid row_height_factor: %v", c.RowHeightFactor)
	}
	if c.AutoThreshold <= c.AmbiguousThreshold {
		return fmt.Errorf(
			"auto_threshold %v must exceed ambiguous_threshold %v",
			c.AutoThreshold, c.AmbiguousThreshold,
		)
	}
	for name, v := range map[string]float64{
		"auto_threshold":      c.AutoThreshold,
		"ambiguous_threshold": c.AmbiguousThreshold,
		"tie_window":          c.TieWindow,
		"min_confidence":      c.MinConfidence,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("invalid %s: %v", name, v)
		}
	}
	if c.ArithmeticTolerance <= 0 || c.ArithmeticTolerance >= 1 {
		return fmt.Errorf("invalid arithmetic_tolerance: %v", c.ArithmeticTolerance)
	}
	return nil
}
