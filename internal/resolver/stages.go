package resolver

// StageName identifies one processing stage handed to the build engine.
type StageName string

// Canonical stage names.
const (
	StageTransformSource StageName = "transform-source"
	StageExtractCSS      StageName = "extract-css"
	StageCopyAssets      StageName = "copy-assets"
	StageMinifyJS        StageName = "minify-js"
	StageOptimizeCSS     StageName = "optimize-css"
	StageGenerateHTML    StageName = "generate-html"
	StageSplitVendor     StageName = "split-vendor"
	StageExtractManifest StageName = "extract-manifest"
	StageMergeChunks     StageName = "merge-chunks"
	StageMinChunkSize    StageName = "min-chunk-size"
	StageCompress        StageName = "compress"
	StageAnalyzeBundle   StageName = "analyze-bundle"
)

// StageOrder is the fixed order of the stages every resolved config carries.
// HTML generation needs final chunk names, and the manifest must be split out
// after the vendor chunk is identified or it references a stale vendor hash.
var StageOrder = []StageName{
	StageTransformSource,
	StageExtractCSS,
	StageCopyAssets,
	StageMinifyJS,
	StageOptimizeCSS,
	StageGenerateHTML,
	StageSplitVendor,
	StageExtractManifest,
	StageMergeChunks,
	StageMinChunkSize,
}

// Output file name patterns.
const (
	JSFilename      = "js/[name].[chunkhash].js"
	JSChunkFilename = "js/[id].[chunkhash].js"
	CSSFilename     = "css/[name].[contenthash].css"
	HTMLFilename    = "index.html"
	ManifestFile    = "manifest.json"
	ReportFilename  = "report.txt"
)

// Profile defaults for optional keys.
const (
	DefaultMinChunkSize       = 30000
	DefaultIndexPath          = "index.html"
	DefaultAssetsSubDirectory = "static"
	DefaultEntry              = "./src/main.js"
	DefaultCompressThreshold  = 10240
)

// DevtoolSourceMap and DevtoolNone are the two debug-symbol emission modes.
const (
	DevtoolSourceMap = "source-map"
	DevtoolNone      = "none"
)

// StageDescriptor is one processing stage and its options.
type StageDescriptor struct {
	Name    StageName      `json:"name" yaml:"name"`
	Options map[string]any `json:"options" yaml:"options"`
}

// IndexOf returns the position of the named stage in stages, or -1.
func IndexOf(stages []StageDescriptor, name StageName) int {
	for i, s := range stages {
		if s.Name == name {
			return i
		}
	}
	return -1
}
