package engine

import (
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/prodbuild/internal/resolver"
)

func TestEsbuildPattern(t *testing.T) {
	tests := []struct {
		pattern  string
		expected string
	}{
		{resolver.JSFilename, "js/[name].[hash]"},
		{resolver.JSChunkFilename, "js/[name].[hash]"},
		{resolver.CSSFilename, "css/[name].[hash]"},
		{"[name].js", "[name]"},
		{"assets/[name]-[hash]", "assets/[name]-[hash]"},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			require.Equal(t, tt.expected, esbuildPattern(tt.pattern))
		})
	}
}

func TestSharedNames(t *testing.T) {
	tests := []struct {
		name     string
		js       string
		css      string
		current  string
		expected string
	}{
		{
			name:     "directories named after extensions",
			js:       resolver.JSFilename,
			css:      resolver.CSSFilename,
			current:  "js/[name].[hash]",
			expected: "[ext]/[name].[hash]",
		},
		{
			name:     "identical templates",
			js:       "assets/[name].[hash].js",
			css:      "assets/[name].[contenthash].css",
			current:  "assets/[name].[hash]",
			expected: "assets/[name].[hash]",
		},
		{
			name:     "unrelated layout keeps current",
			js:       "scripts/[name].js",
			css:      "styles/[name].[hash].css",
			current:  "scripts/[name]",
			expected: "scripts/[name]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, sharedNames(tt.js, tt.css, tt.current))
		})
	}
}

func TestParseDevtool(t *testing.T) {
	tests := []struct {
		devtool  string
		expected api.SourceMap
	}{
		{"", api.SourceMapNone},
		{resolver.DevtoolNone, api.SourceMapNone},
		{resolver.DevtoolSourceMap, api.SourceMapLinked},
		{"inline-source-map", api.SourceMapInline},
		{"hidden-source-map", api.SourceMapExternal},
	}

	for _, tt := range tests {
		t.Run(tt.devtool, func(t *testing.T) {
			got, err := parseDevtool(tt.devtool)
			require.NoError(t, err)
			require.Equal(t, tt.expected, got)
		})
	}

	_, err := parseDevtool("cheap-module-eval")
	require.ErrorIs(t, err, ErrInvalidOption)
}

func TestHandlersCoverStageOrder(t *testing.T) {
	for _, name := range resolver.StageOrder {
		_, ok := handlers[name]
		require.True(t, ok, "no handler for %s", name)
	}
	_, ok := handlers[resolver.StageCompress]
	require.True(t, ok)
	_, ok = handlers[resolver.StageAnalyzeBundle]
	require.True(t, ok)
}

func TestCompressedSuffix(t *testing.T) {
	suffix, err := compressedSuffix("gzip")
	require.NoError(t, err)
	require.Equal(t, ".gz", suffix)

	suffix, err = compressedSuffix("zstd")
	require.NoError(t, err)
	require.Equal(t, ".zst", suffix)

	_, err = compressedSuffix("brotli")
	require.ErrorIs(t, err, ErrInvalidOption)
}

func TestMatchAsset(t *testing.T) {
	require.True(t, matchAsset("**/*", "img/logo.png"))
	require.True(t, matchAsset("*.txt", "robots.txt"))
	require.True(t, matchAsset("*.png", "img/logo.png"))
	require.False(t, matchAsset("*.png", "robots.txt"))
}
