package engine

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/wolfeidau/prodbuild/internal/profile"
	"github.com/wolfeidau/prodbuild/internal/resolver"
)

type stageHandler struct {
	// stages that must appear earlier in the list
	requires []resolver.StageName
	// adjusts esbuild options before bundling
	configure func(b *build, opts profile.Profile) error
	// runs over the emitted files after bundling
	after func(ctx context.Context, b *build, opts profile.Profile) error
}

var handlers = map[resolver.StageName]stageHandler{
	resolver.StageTransformSource: {configure: configureTransform},
	resolver.StageExtractCSS:      {configure: configureExtractCSS, requires: []resolver.StageName{resolver.StageTransformSource}},
	resolver.StageCopyAssets:      {after: copyAssets},
	resolver.StageMinifyJS:        {configure: configureMinifyJS},
	resolver.StageOptimizeCSS:     {configure: configureOptimizeCSS},
	resolver.StageGenerateHTML:    {after: generateHTML, requires: []resolver.StageName{resolver.StageTransformSource}},
	resolver.StageSplitVendor:     {configure: configureSplitVendor},
	resolver.StageExtractManifest: {after: writeManifest, requires: []resolver.StageName{resolver.StageSplitVendor}},
	resolver.StageMergeChunks:     {configure: configureMergeChunks},
	resolver.StageMinChunkSize:    {after: checkMinChunkSize},
	resolver.StageCompress:        {after: compressOutputs},
	resolver.StageAnalyzeBundle:   {after: analyzeBundle},
}

func configureTransform(b *build, opts profile.Profile) error {
	entry := opts.Map("entry")
	if len(entry) == 0 {
		return fmt.Errorf("%w: entry must be a non-empty mapping", ErrInvalidOption)
	}

	names := make([]string, 0, len(entry))
	for name := range entry {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		input, ok := entry[name].(string)
		if !ok || input == "" {
			return fmt.Errorf("%w: entry %q must be a path", ErrInvalidOption, name)
		}
		b.opts.EntryPointsAdvanced = append(b.opts.EntryPointsAdvanced, api.EntryPoint{
			InputPath:  input,
			OutputPath: name,
		})
		b.entries[name] = metafileKey(b.workDir, input)
	}

	define := make(map[string]string)
	for k, v := range opts.Map("define") {
		define[k] = fmt.Sprint(v)
	}
	b.opts.Define = define

	sourcemap, err := parseDevtool(opts.String("devtool", resolver.DevtoolNone))
	if err != nil {
		return err
	}
	b.opts.Sourcemap = sourcemap

	b.jsPattern = opts.String("filename", resolver.JSFilename)
	b.opts.EntryNames = esbuildPattern(b.jsPattern)
	b.opts.ChunkNames = esbuildPattern(opts.String("chunkFilename", resolver.JSChunkFilename))

	for _, ext := range opts.Strings("extensions", []string{".js", ".jsx"}) {
		b.opts.Loader[ext] = api.LoaderJSX
	}
	return nil
}

func configureExtractCSS(b *build, opts profile.Profile) error {
	cssPattern := opts.String("filename", resolver.CSSFilename)
	b.opts.Loader[".css"] = api.LoaderCSS
	b.opts.EntryNames = sharedNames(b.jsPattern, cssPattern, b.opts.EntryNames)
	b.opts.ChunkNames = sharedNames(b.opts.ChunkNames+".js", cssPattern, b.opts.ChunkNames)
	return nil
}

func configureMinifyJS(b *build, opts profile.Profile) error {
	b.opts.MinifyWhitespace = true
	b.opts.MinifyIdentifiers = true
	b.opts.MinifySyntax = true
	if !opts.Bool("comments", false) {
		b.opts.LegalComments = api.LegalCommentsNone
	}
	return nil
}

func configureOptimizeCSS(b *build, opts profile.Profile) error {
	// esbuild minifies css with the same switches as javascript
	b.opts.MinifyWhitespace = true
	b.opts.MinifySyntax = true
	return nil
}

func configureSplitVendor(b *build, opts profile.Profile) error {
	b.opts.Splitting = true
	b.log.Debug().
		Str("name", opts.String("name", "vendor")).
		Str("test", opts.String("test", "node_modules")).
		Msg("Shared chunks are split by esbuild")
	return nil
}

func configureMergeChunks(b *build, opts profile.Profile) error {
	b.log.Debug().Bool("aggressive", opts.Bool("aggressive", true)).Msg("Chunk merging is handled by esbuild")
	return nil
}

func checkMinChunkSize(ctx context.Context, b *build, opts profile.Profile) error {
	floor := opts.Int("minChunkSize", resolver.DefaultMinChunkSize)
	for _, key := range b.meta.outputKeys() {
		if !b.meta.isChunk(key) {
			continue
		}
		if size := b.meta.Outputs[key].Bytes; size < floor {
			b.warn("chunk %s is %d bytes, below the minimum chunk size of %d", key, size, floor)
		}
	}
	return nil
}

func analyzeBundle(ctx context.Context, b *build, opts profile.Profile) error {
	report := api.AnalyzeMetafile(b.metafile, api.AnalyzeMetafileOptions{
		Verbose: opts.Bool("verbose", false),
	})
	return b.writeFile(opts.String("reportFilename", resolver.ReportFilename), []byte(report))
}

func parseDevtool(devtool string) (api.SourceMap, error) {
	switch devtool {
	case "", resolver.DevtoolNone:
		return api.SourceMapNone, nil
	case resolver.DevtoolSourceMap:
		return api.SourceMapLinked, nil
	case "inline-source-map", "eval-source-map":
		return api.SourceMapInline, nil
	case "hidden-source-map":
		return api.SourceMapExternal, nil
	}
	return api.SourceMapNone, fmt.Errorf("%w: unsupported devtool %q", ErrInvalidOption, devtool)
}

var patternReplacer = strings.NewReplacer(
	"[chunkhash]", "[hash]",
	"[contenthash]", "[hash]",
	"[id]", "[name]",
)

// esbuildPattern converts an output file name pattern such as
// "js/[name].[chunkhash].js" into an esbuild name template "js/[name].[hash]".
func esbuildPattern(pattern string) string {
	p := patternReplacer.Replace(pattern)
	if ext := path.Ext(p); ext != "" && !strings.Contains(ext, "]") {
		p = strings.TrimSuffix(p, ext)
	}
	return p
}

// sharedNames returns a single esbuild template serving both javascript and
// css patterns. When each pattern lives in a directory named after its
// extension ("js/x.js", "css/x.css") the template uses the [ext] placeholder,
// otherwise the current template is kept and stylesheets land beside scripts.
func sharedNames(jsPattern, cssPattern, current string) string {
	js, css := esbuildPattern(jsPattern), esbuildPattern(cssPattern)
	if js == css {
		return js
	}
	jsExt := strings.TrimPrefix(path.Ext(jsPattern), ".")
	cssExt := strings.TrimPrefix(path.Ext(cssPattern), ".")
	if path.Dir(js) == jsExt && path.Dir(css) == cssExt && path.Base(js) == path.Base(css) {
		return "[ext]/" + path.Base(js)
	}
	return current
}
