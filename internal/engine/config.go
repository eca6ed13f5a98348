package engine

import (
	"errors"
	"fmt"

	"dario.cat/mergo"
	"github.com/evanw/esbuild/pkg/api"
)

var (
	// ErrUnknownStage indicates a stage descriptor the engine has no handler for
	ErrUnknownStage = errors.New("unknown stage")
	// ErrStageOrder indicates a stage appears before a stage it depends on, or twice
	ErrStageOrder = errors.New("invalid stage order")
	// ErrInvalidOption indicates a stage option has the wrong type or value
	ErrInvalidOption = errors.New("invalid stage option")
	// ErrBuildFailed indicates esbuild reported errors
	ErrBuildFailed = errors.New("esbuild failed with errors")
)

type Config struct {
	// Working directory entry points and asset directories are relative to
	WorkDir string
	// Metafile name, written inside the output directory
	MetafileName string
	// JavaScript language target (e.g., "es2017")
	Target string
	// Remove the output directory before building
	Clean bool
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		WorkDir:      ".",
		MetafileName: "meta.json",
		Target:       "es2017",
	}
}

// withDefaults fills zero fields of cfg from DefaultConfig.
func withDefaults(cfg Config) (Config, error) {
	if err := mergo.Merge(&cfg, DefaultConfig()); err != nil {
		return Config{}, fmt.Errorf("failed to apply engine defaults: %w", err)
	}
	return cfg, nil
}

var targets = map[string]api.Target{
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

func parseTarget(s string) (api.Target, error) {
	t, ok := targets[s]
	if !ok {
		return 0, fmt.Errorf("%w: unsupported target %q", ErrInvalidOption, s)
	}
	return t, nil
}
