package engine

import (
	"path"
	"path/filepath"
	"slices"
	"strings"
)

// Metafile is the subset of the esbuild metafile the engine reads.
type Metafile struct {
	Outputs map[string]OutputInfo `json:"outputs"`
}

type OutputInfo struct {
	Bytes      int          `json:"bytes"`
	EntryPoint string       `json:"entryPoint,omitempty"`
	CSSBundle  string       `json:"cssBundle,omitempty"`
	Imports    []ImportInfo `json:"imports"`
}

type ImportInfo struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external,omitempty"`
}

// entryOutput returns the metafile output key for the given entry point input.
func (m *Metafile) entryOutput(input string) (string, bool) {
	for _, key := range m.outputKeys() {
		info := m.Outputs[key]
		if info.EntryPoint == input && path.Ext(key) != ".map" {
			return key, true
		}
	}
	return "", false
}

// scripts returns the output keys needed by entry, dependencies first.
func (m *Metafile) scripts(entry string) []string {
	var (
		scripts []string
		visited = make(map[string]bool)
	)
	m.addDependencies(entry, &scripts, visited)
	return scripts
}

func (m *Metafile) addDependencies(output string, scripts *[]string, visited map[string]bool) {
	if visited[output] {
		return
	}
	visited[output] = true

	for _, imp := range m.Outputs[output].Imports {
		if imp.External || imp.Kind != "import-statement" {
			continue
		}
		m.addDependencies(imp.Path, scripts, visited)
	}

	*scripts = append(*scripts, output)
}

func (m *Metafile) outputKeys() []string {
	keys := make([]string, 0, len(m.Outputs))
	for k := range m.Outputs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// isChunk reports whether the output is a shared JavaScript chunk rather than
// an entry point, a stylesheet or a source map.
func (m *Metafile) isChunk(key string) bool {
	return m.Outputs[key].EntryPoint == "" && path.Ext(key) == ".js"
}

// metafileKey converts a path to the form esbuild uses for metafile keys:
// slash separated and relative to the working directory.
func metafileKey(workDir, p string) string {
	if filepath.IsAbs(p) {
		if rel, err := filepath.Rel(workDir, p); err == nil {
			p = rel
		}
	}
	return filepath.ToSlash(filepath.Clean(p))
}

// publicURL maps a metafile key to the URL it is served from.
func publicURL(workDir, outDir, publicPath, key string) string {
	rel, err := filepath.Rel(outDir, filepath.Join(workDir, filepath.FromSlash(key)))
	if err != nil {
		rel = key
	}
	return joinURL(publicPath, filepath.ToSlash(rel))
}

func joinURL(publicPath, rel string) string {
	if publicPath == "" {
		return rel
	}
	return strings.TrimSuffix(publicPath, "/") + "/" + strings.TrimPrefix(rel, "/")
}
