// Package engine runs a resolved stage list against esbuild. Each stage either
// adjusts the esbuild build options or runs as a post build step over the
// emitted files; bundling, minification and splitting are left to esbuild.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfeidau/prodbuild/internal/profile"
	"github.com/wolfeidau/prodbuild/internal/resolver"
	"github.com/wolfeidau/prodbuild/internal/telemetry"
)

const tracerName = "github.com/wolfeidau/prodbuild/internal/engine"

// OutputFile is one file written by a build.
type OutputFile struct {
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
}

// Result summarises a build.
type Result struct {
	BuildID  string        `json:"buildId"`
	OutDir   string        `json:"outDir"`
	Outputs  []OutputFile  `json:"outputs"`
	Warnings []string      `json:"warnings,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Engine runs stage lists. Runs are serialised.
type Engine struct {
	config Config
	mu     sync.Mutex
}

// New creates an engine, filling unset configuration from DefaultConfig.
func New(config Config) (*Engine, error) {
	cfg, err := withDefaults(config)
	if err != nil {
		return nil, err
	}
	if _, err := parseTarget(cfg.Target); err != nil {
		return nil, err
	}
	return &Engine{config: cfg}, nil
}

// build carries the state of a single run between stage handlers.
type build struct {
	id         string
	workDir    string
	outDir     string
	publicPath string
	opts       api.BuildOptions
	entries    map[string]string // entry name -> metafile input key
	jsPattern  string
	meta       *Metafile
	metafile   string
	result     *Result
	log        zerolog.Logger
}

func (b *build) addOutput(path string, size int) {
	rel, err := filepath.Rel(b.outDir, path)
	if err != nil {
		rel = path
	}
	b.result.Outputs = append(b.result.Outputs, OutputFile{Path: filepath.ToSlash(rel), Bytes: size})
}

func (b *build) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	b.log.Warn().Msg(msg)
	b.result.Warnings = append(b.result.Warnings, msg)
}

// Run executes stages against the profile's output and public paths.
func (e *Engine) Run(ctx context.Context, stages []resolver.StageDescriptor, p profile.Profile) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	started := time.Now()
	metrics := telemetry.GetMetrics()

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate build id: %w", err)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "engine.Run", trace.WithAttributes(
		attribute.String("build.id", id.String()),
		attribute.Int("build.stages", len(stages)),
	))
	defer span.End()

	res, err := e.run(ctx, id.String(), stages, p)

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.BuildsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	metrics.BuildDuration.Record(ctx, float64(time.Since(started).Milliseconds()))

	if err != nil {
		return nil, err
	}

	res.Duration = time.Since(started)
	total := 0
	for _, out := range res.Outputs {
		total += out.Bytes
	}
	metrics.OutputBytes.Add(ctx, int64(total))
	metrics.BuildWarningsTotal.Add(ctx, int64(len(res.Warnings)))

	return res, nil
}

func (e *Engine) run(ctx context.Context, id string, stages []resolver.StageDescriptor, p profile.Profile) (*Result, error) {
	if err := profile.Require(p, profile.RequiredKeys...); err != nil {
		return nil, err
	}

	workDir, err := filepath.Abs(e.config.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}

	outDir := p.String(profile.KeyOutputPath, "")
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(workDir, outDir)
	}

	target, err := parseTarget(e.config.Target)
	if err != nil {
		return nil, err
	}

	log := zerolog.Ctx(ctx).With().Str("build_id", id).Logger()

	b := &build{
		id:         id,
		workDir:    workDir,
		outDir:     outDir,
		publicPath: p.String(profile.KeyPublicPath, "/"),
		entries:    make(map[string]string),
		result:     &Result{BuildID: id, OutDir: outDir},
		log:        log,
		opts: api.BuildOptions{
			AbsWorkingDir: workDir,
			Outdir:        outDir,
			PublicPath:    p.String(profile.KeyPublicPath, "/"),
			Bundle:        true,
			Write:         true,
			Metafile:      true,
			Format:        api.FormatESModule,
			Platform:      api.PlatformBrowser,
			Target:        target,
			TreeShaking:   api.TreeShakingTrue,
			Sourcemap:     api.SourceMapNone,
			JSX:           api.JSXAutomatic,
			LogLevel:      api.LogLevelSilent,
			Loader:        map[string]api.Loader{},
		},
	}

	if err := configure(b, stages); err != nil {
		return nil, err
	}

	if len(b.opts.EntryPointsAdvanced) == 0 {
		return nil, fmt.Errorf("%w: no entry points configured", ErrInvalidOption)
	}

	if e.config.Clean {
		if containsDir(outDir, workDir) {
			return nil, fmt.Errorf("%w: output directory %s contains the working directory", ErrInvalidOption, outDir)
		}
		log.Debug().Str("dir", outDir).Msg("Cleaning output directory")
		if err := os.RemoveAll(outDir); err != nil {
			return nil, fmt.Errorf("failed to clean output directory: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("build cancelled before bundling: %w", err)
	}

	log.Info().Int("entrypoints", len(b.opts.EntryPointsAdvanced)).Str("outdir", outDir).Msg("Building assets")

	if err := bundle(ctx, b); err != nil {
		return nil, err
	}

	if err := os.WriteFile(filepath.Join(outDir, e.config.MetafileName), []byte(b.metafile), 0600); err != nil {
		return nil, fmt.Errorf("failed to write metafile: %w", err)
	}

	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("build cancelled before stage %s: %w", s.Name, err)
		}
		h := handlers[s.Name]
		if h.after == nil {
			continue
		}
		if err := runAfter(ctx, b, s, h); err != nil {
			return nil, err
		}
	}

	log.Info().Int("outputs", len(b.result.Outputs)).Int("warnings", len(b.result.Warnings)).Msg("Build complete")

	return b.result, nil
}

// configure validates stage order and applies every configure step.
func configure(b *build, stages []resolver.StageDescriptor) error {
	seen := make(map[resolver.StageName]bool, len(stages))
	for _, s := range stages {
		h, ok := handlers[s.Name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownStage, s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("%w: stage %s appears more than once", ErrStageOrder, s.Name)
		}
		for _, req := range h.requires {
			if !seen[req] {
				return fmt.Errorf("%w: stage %s must follow %s", ErrStageOrder, s.Name, req)
			}
		}
		seen[s.Name] = true

		if h.configure == nil {
			continue
		}
		if err := h.configure(b, profile.Profile(s.Options)); err != nil {
			return fmt.Errorf("stage %s: %w", s.Name, err)
		}
	}
	return nil
}

func bundle(ctx context.Context, b *build) error {
	_, span := otel.Tracer(tracerName).Start(ctx, "esbuild.Build")
	defer span.End()

	result := api.Build(b.opts)

	for _, msg := range result.Warnings {
		b.warn("esbuild: %s", msg.Text)
	}

	if len(result.Errors) > 0 {
		formatted := api.FormatMessages(result.Errors, api.FormatMessagesOptions{
			Kind: api.ErrorMessage,
		})
		for _, msg := range result.Errors {
			b.log.Error().Str("error", msg.Text).Msg("Build error")
		}
		span.SetStatus(codes.Error, "esbuild errors")
		return fmt.Errorf("%w:\n%s", ErrBuildFailed, strings.Join(formatted, ""))
	}

	var meta Metafile
	if err := json.Unmarshal([]byte(result.Metafile), &meta); err != nil {
		return fmt.Errorf("failed to parse metafile: %w", err)
	}
	b.meta = &meta
	b.metafile = result.Metafile

	for _, key := range meta.outputKeys() {
		file := filepath.Join(b.workDir, filepath.FromSlash(key))
		b.log.Debug().Str("file", file).Msg("Built file")
		b.addOutput(file, meta.Outputs[key].Bytes)
	}
	return nil
}

func runAfter(ctx context.Context, b *build, s resolver.StageDescriptor, h stageHandler) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "stage."+string(s.Name))
	defer span.End()

	if err := h.after(ctx, b, profile.Profile(s.Options)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("stage %s: %w", s.Name, err)
	}
	return nil
}

// containsDir reports whether child is dir itself or sits below it.
func containsDir(dir, child string) bool {
	rel, err := filepath.Rel(dir, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
