// Package resolver turns a base build profile, an environment overlay and a
// set of feature flags into the resolved configuration consumed by the build
// engine.
//
// Resolution is pure: it performs no I/O and reads no environment. Callers
// read environment variables once and pass them in as Flags.
package resolver

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/wolfeidau/prodbuild/internal/profile"
)

// Flags are the explicit feature toggles applied during resolution.
type Flags struct {
	// SourceMap selects full source maps instead of none.
	SourceMap bool `json:"sourceMap"`
	// AnalyzerReport appends the bundle analyzer stage.
	AnalyzerReport bool `json:"analyzerReport"`
	// Compress appends the precompression stage.
	Compress bool `json:"compress"`
}

// DefaultFlags derives flags from the preferences recorded in a profile.
func DefaultFlags(p profile.Profile) Flags {
	return Flags{
		SourceMap:      p.Bool(profile.KeySourceMap, false),
		AnalyzerReport: p.Bool(profile.KeyBundleAnalyzerReport, false),
		Compress:       p.Bool(profile.KeyProductionGzip, false),
	}
}

// Or returns flags enabled in either f or o.
func (f Flags) Or(o Flags) Flags {
	return Flags{
		SourceMap:      f.SourceMap || o.SourceMap,
		AnalyzerReport: f.AnalyzerReport || o.AnalyzerReport,
		Compress:       f.Compress || o.Compress,
	}
}

// ResolvedConfig is the finalized profile and its ordered stages.
type ResolvedConfig struct {
	Profile profile.Profile   `json:"profile" yaml:"profile"`
	Stages  []StageDescriptor `json:"stages" yaml:"stages"`
}

// Fingerprint returns a base58 encoded SHA-256 of the canonical JSON encoding.
// Identical resolutions always produce identical fingerprints.
func (rc *ResolvedConfig) Fingerprint() (string, error) {
	data, err := json.Marshal(rc)
	if err != nil {
		return "", fmt.Errorf("failed to encode resolved config: %w", err)
	}
	hash := sha256.Sum256(data)
	return base58.Encode(hash[:]), nil
}

// Stage returns the descriptor for name.
func (rc *ResolvedConfig) Stage(name StageName) (StageDescriptor, bool) {
	i := IndexOf(rc.Stages, name)
	if i < 0 {
		return StageDescriptor{}, false
	}
	return rc.Stages[i], true
}

// Resolve merges overlay onto base and builds the stage list.
//
// It fails with a profile.ConfigError of kind MissingKey when base lacks an
// output path or public path, and of kind InvalidOverlayType when an overlay
// value conflicts with the base value type.
func Resolve(base, overlay profile.Profile, flags Flags) (*ResolvedConfig, error) {
	if err := profile.Require(base, profile.RequiredKeys...); err != nil {
		return nil, err
	}

	merged, err := profile.Merge(base, overlay)
	if err != nil {
		return nil, err
	}

	// an overlay may blank a required key
	if err := profile.Require(merged, profile.RequiredKeys...); err != nil {
		return nil, err
	}

	stages, err := buildStages(merged, flags)
	if err != nil {
		return nil, err
	}

	return &ResolvedConfig{
		Profile: merged,
		Stages:  stages,
	}, nil
}

func buildStages(p profile.Profile, flags Flags) ([]StageDescriptor, error) {
	htmlOptions, err := htmlStageOptions(p)
	if err != nil {
		return nil, err
	}

	stages := []StageDescriptor{
		{Name: StageTransformSource, Options: transformOptions(p, flags)},
		{Name: StageExtractCSS, Options: map[string]any{
			"filename": CSSFilename,
		}},
		{Name: StageCopyAssets, Options: map[string]any{
			"context": p.String(profile.KeyAssetsSubDirectory, DefaultAssetsSubDirectory),
			"from":    "**/*",
		}},
		{Name: StageMinifyJS, Options: map[string]any{
			"comments": false,
			"warnings": false,
		}},
		{Name: StageOptimizeCSS, Options: map[string]any{
			"safe": true,
		}},
		{Name: StageGenerateHTML, Options: htmlOptions},
		{Name: StageSplitVendor, Options: map[string]any{
			"name":       "vendor",
			"test":       "node_modules",
			"extensions": []any{".js"},
		}},
		{Name: StageExtractManifest, Options: map[string]any{
			"name":     "manifest",
			"chunks":   []any{"vendor"},
			"filename": ManifestFile,
		}},
		{Name: StageMergeChunks, Options: map[string]any{
			"aggressive": true,
		}},
		{Name: StageMinChunkSize, Options: map[string]any{
			"minChunkSize": p.Int(profile.KeyMinChunkSize, DefaultMinChunkSize),
		}},
	}

	if flags.Compress {
		stages = append(stages, StageDescriptor{Name: StageCompress, Options: map[string]any{
			"algorithm":  "gzip",
			"extensions": toAny(p.Strings(profile.KeyProductionGzipExtensions, []string{"js", "css"})),
			"threshold":  DefaultCompressThreshold,
		}})
	}

	if flags.AnalyzerReport {
		stages = append(stages, StageDescriptor{Name: StageAnalyzeBundle, Options: map[string]any{
			"reportFilename": ReportFilename,
			"verbose":        false,
		}})
	}

	return stages, nil
}

func transformOptions(p profile.Profile, flags Flags) map[string]any {
	entry := p.Map(profile.KeyEntry)
	if len(entry) == 0 {
		entry = map[string]any{"app": DefaultEntry}
	}

	define := map[string]any{"process.env.NODE_ENV": `"production"`}
	for k, v := range p.Map(profile.KeyDefine) {
		define[k] = v
	}

	devtool := DevtoolNone
	if flags.SourceMap {
		devtool = DevtoolSourceMap
	}

	return map[string]any{
		"entry":         entry,
		"define":        define,
		"devtool":       devtool,
		"filename":      JSFilename,
		"chunkFilename": JSChunkFilename,
		"extensions":    []any{".js", ".jsx"},
		"exclude":       "node_modules",
	}
}

func htmlStageOptions(p profile.Profile) (map[string]any, error) {
	defaults := profile.Profile{
		"filename": HTMLFilename,
		"template": p.String(profile.KeyIndexPath, DefaultIndexPath),
		"inject":   true,
		"minify": map[string]any{
			"removeComments":        true,
			"collapseWhitespace":    true,
			"removeAttributeQuotes": true,
		},
		"chunksSortMode": "dependency",
	}

	merged, err := profile.Merge(defaults, p.Map(profile.KeyHTML))
	if err != nil {
		// report the conflict against the profile key rather than the stage
		if cfgErr, ok := err.(*profile.ConfigError); ok {
			cfgErr.Key = profile.KeyHTML + "." + cfgErr.Key
		}
		return nil, err
	}
	return merged, nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
