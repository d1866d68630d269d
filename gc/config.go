package gc

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/gcroot/errors"
	"github.com/wippyai/gcroot/zeal"
)

// Config controls heap sizing and collection heuristics.
type Config struct {
	// Logger overrides the package logger for this runtime.
	Logger *zap.Logger `toml:"-"`

	// Zeal is a zeal setting ("2,1"). Empty means read GCROOT_ZEAL.
	Zeal string `toml:"zeal"`

	// NurseryCapacity is the number of nursery objects that triggers a minor
	// collection. Zero allocates everything tenured.
	NurseryCapacity int `toml:"nursery_capacity"`

	// MaxObjects caps live objects; allocation beyond it fails. Zero is
	// unlimited.
	MaxObjects int `toml:"max_objects"`

	// InitialThreshold is the tenured population that triggers the first
	// major collection.
	InitialThreshold int `toml:"initial_threshold"`

	// GrowthFactor scales the surviving population into the next threshold.
	GrowthFactor float64 `toml:"growth_factor"`

	// SliceBudget is the number of objects marked per incremental step.
	SliceBudget int `toml:"slice_budget"`

	// Incremental makes heuristic major collections incremental.
	Incremental bool `toml:"incremental"`

	// CompactOnMajor compacts the tenured heap after every major collection.
	CompactOnMajor bool `toml:"compact_on_major"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		NurseryCapacity:  256,
		InitialThreshold: 1024,
		GrowthFactor:     2.0,
		SliceBudget:      64,
	}
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var err error
	if c.NurseryCapacity < 0 {
		err = multierr.Append(err, errors.InvalidInput(errors.PhaseConfig, "nursery_capacity must not be negative"))
	}
	if c.MaxObjects < 0 {
		err = multierr.Append(err, errors.InvalidInput(errors.PhaseConfig, "max_objects must not be negative"))
	}
	if c.InitialThreshold <= 0 {
		err = multierr.Append(err, errors.InvalidInput(errors.PhaseConfig, "initial_threshold must be positive"))
	}
	if c.GrowthFactor < 1 {
		err = multierr.Append(err, errors.InvalidInput(errors.PhaseConfig,
			fmt.Sprintf("growth_factor %g must be at least 1", c.GrowthFactor)))
	}
	if c.SliceBudget <= 0 {
		err = multierr.Append(err, errors.InvalidInput(errors.PhaseConfig, "slice_budget must be positive"))
	}
	if c.Zeal != "" {
		if _, zerr := zeal.Parse(c.Zeal); zerr != nil {
			err = multierr.Append(err, zerr)
		}
	}
	return err
}

type fileConfig struct {
	Zeal             string  `toml:"zeal"`
	NurseryCapacity  int     `toml:"nursery_capacity"`
	MaxObjects       int     `toml:"max_objects"`
	InitialThreshold int     `toml:"initial_threshold"`
	GrowthFactor     float64 `toml:"growth_factor"`
	SliceBudget      int     `toml:"slice_budget"`
	Incremental      bool    `toml:"incremental"`
	CompactOnMajor   bool    `toml:"compact_on_major"`
}

// LoadConfig reads a TOML file over DefaultConfig. Keys absent from the file
// keep their defaults. The result is validated.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "load "+path)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, errors.InvalidInput(errors.PhaseConfig, "unknown keys: "+strings.Join(keys, ", "))
	}

	if meta.IsDefined("zeal") {
		cfg.Zeal = strings.TrimSpace(raw.Zeal)
	}
	if meta.IsDefined("nursery_capacity") {
		cfg.NurseryCapacity = raw.NurseryCapacity
	}
	if meta.IsDefined("max_objects") {
		cfg.MaxObjects = raw.MaxObjects
	}
	if meta.IsDefined("initial_threshold") {
		cfg.InitialThreshold = raw.InitialThreshold
	}
	if meta.IsDefined("growth_factor") {
		cfg.GrowthFactor = raw.GrowthFactor
	}
	if meta.IsDefined("slice_budget") {
		cfg.SliceBudget = raw.SliceBudget
	}
	if meta.IsDefined("incremental") {
		cfg.Incremental = raw.Incremental
	}
	if meta.IsDefined("compact_on_major") {
		cfg.CompactOnMajor = raw.CompactOnMajor
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
