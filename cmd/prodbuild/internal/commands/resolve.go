package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wolfeidau/prodbuild/internal/logger"
	"github.com/wolfeidau/prodbuild/internal/profile"
	"github.com/wolfeidau/prodbuild/internal/resolver"
)

type ResolveCmd struct {
	ProfileFlags `embed:""`
	Format       string `help:"output format" default:"json" enum:"json,yaml"`
}

func (c *ResolveCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx = log.WithContext(ctx)

	rc, err := c.resolve(ctx)
	if err != nil {
		return err
	}

	return writeResolved(os.Stdout, c.Format, rc)
}

type resolvedOutput struct {
	Fingerprint string                     `json:"fingerprint" yaml:"fingerprint"`
	Profile     profile.Profile            `json:"profile" yaml:"profile"`
	Stages      []resolver.StageDescriptor `json:"stages" yaml:"stages"`
}

func writeResolved(w io.Writer, format string, rc *resolver.ResolvedConfig) error {
	fingerprint, err := rc.Fingerprint()
	if err != nil {
		return err
	}

	out := resolvedOutput{
		Fingerprint: fingerprint,
		Profile:     rc.Profile,
		Stages:      rc.Stages,
	}

	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("failed to encode resolved config: %w", err)
		}
		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("failed to encode resolved config: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unsupported format %q", format)
}
