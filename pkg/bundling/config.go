package bundling

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned by Validate and Bundle for out-of-range parameters.
var ErrInvalidConfig = errors.New("bundling: invalid configuration")

// ProgressFunc is called after every completed iteration
type ProgressFunc func(iteration, maxIterations int, maxDisplacement float64)

// Config holds the bundling parameters
type Config struct {
	InitialBandwidth float64 `json:"initialBandwidth"` // Gaussian kernel sigma at iteration 0
	Decay            float64 `json:"decay"`            // bandwidth multiplier per iteration, in (0,1)
	MaxIterations    int     `json:"maxIterations"`    // 0 returns the straight resampled edges
	Samples          int     `json:"samples"`          // points per output polyline, endpoints included
	Damping          float64 `json:"damping"`          // step scale applied to each displacement
	Tension          float64 `json:"tension"`          // Laplacian smoothing weight after each step
	Tolerance        float64 `json:"tolerance"`        // stop early below this max displacement; 0 disables
	Normalize        bool    `json:"normalize"`        // bundle in the unit square; bandwidth and tolerance are then unit-square lengths
	Workers          int     `json:"workers"`          // 0 means GOMAXPROCS
	MinDistance      float64 `json:"minDistance"`      // kernel distance floor

	Progress ProgressFunc `json:"-"`
}

// DefaultConfig returns the parameters used by the notebooks
func DefaultConfig() Config {
	return Config{
		InitialBandwidth: 0.05,
		Decay:            0.7,
		MaxIterations:    10,
		Samples:          50,
		Damping:          0.5,
		Tension:          0,
		Tolerance:        0,
		Normalize:        true,
		Workers:          0,
		MinDistance:      1e-9,
	}
}

// Validate rejects configurations that cannot be run
func (c Config) Validate() error {
	switch {
	case !(c.InitialBandwidth > 0) || math.IsInf(c.InitialBandwidth, 0):
		return fmt.Errorf("initialBandwidth=%g must be positive and finite: %w", c.InitialBandwidth, ErrInvalidConfig)
	case !(c.Decay > 0 && c.Decay < 1):
		return fmt.Errorf("decay=%g must be in (0,1): %w", c.Decay, ErrInvalidConfig)
	case c.MaxIterations < 0:
		return fmt.Errorf("maxIterations=%d must not be negative: %w", c.MaxIterations, ErrInvalidConfig)
	case c.Samples < 2:
		return fmt.Errorf("samples=%d must be at least 2: %w", c.Samples, ErrInvalidConfig)
	case !(c.Damping > 0 && c.Damping <= 1):
		return fmt.Errorf("damping=%g must be in (0,1]: %w", c.Damping, ErrInvalidConfig)
	case !(c.Tension >= 0 && c.Tension < 1):
		return fmt.Errorf("tension=%g must be in [0,1): %w", c.Tension, ErrInvalidConfig)
	case !(c.Tolerance >= 0):
		return fmt.Errorf("tolerance=%g must not be negative: %w", c.Tolerance, ErrInvalidConfig)
	case c.Workers < 0:
		return fmt.Errorf("workers=%d must not be negative: %w", c.Workers, ErrInvalidConfig)
	case !(c.MinDistance > 0):
		return fmt.Errorf("minDistance=%g must be positive: %w", c.MinDistance, ErrInvalidConfig)
	}
	return nil
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// ViperConfig manages bundling configuration using Viper
type ViperConfig struct {
	v *viper.Viper
}

// NewViperConfig creates a new configuration with defaults
func NewViperConfig() *ViperConfig {
	v := viper.New()
	d := DefaultConfig()

	v.SetDefault("bundling.initial_bandwidth", d.InitialBandwidth)
	v.SetDefault("bundling.decay", d.Decay)
	v.SetDefault("bundling.max_iterations", d.MaxIterations)
	v.SetDefault("bundling.samples", d.Samples)
	v.SetDefault("bundling.damping", d.Damping)
	v.SetDefault("bundling.tension", d.Tension)
	v.SetDefault("bundling.tolerance", d.Tolerance)
	v.SetDefault("bundling.normalize", d.Normalize)
	v.SetDefault("bundling.min_distance", d.MinDistance)

	v.SetDefault("performance.num_workers", d.Workers)

	return &ViperConfig{v: v}
}

// LoadFromFile loads configuration from file
func (c *ViperConfig) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	return c.v.ReadInConfig()
}

// BindEnv lets PREFIX_BUNDLING_DECAY style variables override settings
func (c *ViperConfig) BindEnv(prefix string) {
	c.v.SetEnvPrefix(prefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	c.v.AutomaticEnv()
}

// Set allows dynamic configuration changes
func (c *ViperConfig) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// Config materializes the current settings
func (c *ViperConfig) Config() Config {
	return Config{
		InitialBandwidth: c.v.GetFloat64("bundling.initial_bandwidth"),
		Decay:            c.v.GetFloat64("bundling.decay"),
		MaxIterations:    c.v.GetInt("bundling.max_iterations"),
		Samples:          c.v.GetInt("bundling.samples"),
		Damping:          c.v.GetFloat64("bundling.damping"),
		Tension:          c.v.GetFloat64("bundling.tension"),
		Tolerance:        c.v.GetFloat64("bundling.tolerance"),
		Normalize:        c.v.GetBool("bundling.normalize"),
		Workers:          c.v.GetInt("performance.num_workers"),
		MinDistance:      c.v.GetFloat64("bundling.min_distance"),
	}
}
