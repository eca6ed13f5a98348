package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wolfeidau/prodbuild/internal/config"
	"github.com/wolfeidau/prodbuild/internal/profile"
	"github.com/wolfeidau/prodbuild/internal/resolver"
	"github.com/wolfeidau/prodbuild/internal/telemetry"
)

type Globals struct {
	Debug   bool
	Version string
}

// ProfileFlags select the build file, environment and feature toggles. The
// toggle environment variables are read here, once, and handed to the
// resolver as explicit flags.
type ProfileFlags struct {
	Config    string   `help:"path to the build file" default:"build.yaml" env:"PRODBUILD_CONFIG" type:"path"`
	Env       string   `help:"environment overlay to apply" default:"" env:"PRODBUILD_ENV"`
	Set       []string `help:"override a profile value (dotted.key=value)" short:"s"`
	SourceMap bool     `help:"emit source maps" default:"false" env:"PRODUCTION_SOURCE_MAP"`
	Report    bool     `help:"write the bundle analyzer report" default:"false" env:"npm_config_report"`
	Gzip      bool     `help:"precompress outputs" default:"false" env:"PRODUCTION_GZIP"`
}

func (f *ProfileFlags) flags() resolver.Flags {
	return resolver.Flags{
		SourceMap:      f.SourceMap,
		AnalyzerReport: f.Report,
		Compress:       f.Gzip,
	}
}

// resolve loads the build file and resolves it for the selected environment.
func (f *ProfileFlags) resolve(ctx context.Context) (*resolver.ResolvedConfig, error) {
	log := zerolog.Ctx(ctx)
	metrics := telemetry.GetMetrics()

	rc, err := f.load(log)
	if err != nil {
		metrics.ResolutionErrorsTotal.Add(ctx, 1)
		return nil, err
	}
	metrics.ResolutionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("env", f.Env)))
	return rc, nil
}

func (f *ProfileFlags) load(log *zerolog.Logger) (*resolver.ResolvedConfig, error) {
	project, err := config.LoadFile(f.Config)
	if err != nil {
		return nil, err
	}

	overlay, err := project.Overlay(f.Env)
	if err != nil {
		return nil, err
	}

	if len(f.Set) > 0 {
		set, err := config.ParseSet(f.Set)
		if err != nil {
			return nil, err
		}
		overlay, err = profile.Merge(overlay, set)
		if err != nil {
			return nil, fmt.Errorf("override conflicts with environment %q: %w", f.Env, err)
		}
	}

	flags := resolver.DefaultFlags(preferences(project.Base, overlay)).Or(f.flags())

	log.Debug().
		Str("config", f.Config).
		Str("env", f.Env).
		Bool("source_map", flags.SourceMap).
		Bool("report", flags.AnalyzerReport).
		Bool("compress", flags.Compress).
		Msg("Resolving build profile")

	return resolver.Resolve(project.Base, overlay, flags)
}

// preferences returns the profile whose flag preferences apply: the merged
// profile when the overlay is valid, otherwise the base alone. An invalid
// overlay is reported by Resolve.
func preferences(base, overlay profile.Profile) profile.Profile {
	merged, err := profile.Merge(base, overlay)
	if err != nil {
		return base
	}
	return merged
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}

// setupTracing starts telemetry export when enabled and returns a function
// that flushes it.
func setupTracing(ctx context.Context, enabled bool, globals *Globals) func() {
	log := zerolog.Ctx(ctx)
	if !enabled {
		return func() {}
	}

	log.Info().Msg("Tracing is enabled")
	shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Options{
		ServiceName: "prodbuild",
		Version:     globals.Version,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without tracing")
		return func() {}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown telemetry")
		}
	}
}
