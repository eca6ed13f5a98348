package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wolfeidau/prodbuild/internal/engine"
	"github.com/wolfeidau/prodbuild/internal/logger"
)

type BuildCmd struct {
	ProfileFlags `embed:""`
	Workdir      string `help:"directory entry points and assets are relative to" default:"." type:"existingdir"`
	Target       string `help:"JavaScript language target" default:"es2017" enum:"es2015,es2016,es2017,es2018,es2019,es2020,es2021,es2022,esnext"`
	Metafile     string `help:"metafile name written to the output directory" default:"meta.json"`
	Clean        bool   `help:"remove the output directory before building" default:"false"`
	Tracing      bool   `help:"enable tracing" default:"false" env:"PRODBUILD_TRACING"`
}

func (c *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx = log.WithContext(ctx)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown := setupTracing(ctx, c.Tracing, globals)
	defer shutdown()

	rc, err := c.resolve(ctx)
	if err != nil {
		return err
	}

	fingerprint, err := rc.Fingerprint()
	if err != nil {
		return err
	}

	log.Info().
		Str("version", globals.Version).
		Str("env", c.Env).
		Str("fingerprint", fingerprint).
		Int("stages", len(rc.Stages)).
		Msg("Starting build")

	e, err := engine.New(engine.Config{
		WorkDir:      c.Workdir,
		MetafileName: c.Metafile,
		Target:       c.Target,
		Clean:        c.Clean,
	})
	if err != nil {
		return err
	}

	res, err := e.Run(ctx, rc.Stages, rc.Profile)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	for _, out := range res.Outputs {
		log.Info().Str("file", out.Path).Int("bytes", out.Bytes).Msg("Output")
	}
	for _, warning := range res.Warnings {
		log.Warn().Msg(warning)
	}

	log.Info().
		Str("build_id", res.BuildID).
		Str("outdir", res.OutDir).
		Int("outputs", len(res.Outputs)).
		Int("warnings", len(res.Warnings)).
		Dur("duration", res.Duration).
		Msg("Build finished")

	return nil
}
