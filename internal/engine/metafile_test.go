package engine

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleMetafile = `{
  "outputs": {
    "dist/js/app.AAAA1111.js": {
      "bytes": 120,
      "entryPoint": "src/main.js",
      "cssBundle": "dist/css/app.BBBB2222.css",
      "imports": [
        {"path": "dist/js/chunk-CCCC3333.js", "kind": "import-statement"},
        {"path": "dist/js/lazy-DDDD4444.js", "kind": "dynamic-import"},
        {"path": "https://cdn.example.com/x.js", "kind": "import-statement", "external": true}
      ]
    },
    "dist/js/admin.EEEE5555.js": {
      "bytes": 80,
      "entryPoint": "src/admin.js",
      "imports": [
        {"path": "dist/js/chunk-CCCC3333.js", "kind": "import-statement"}
      ]
    },
    "dist/js/app.AAAA1111.js.map": {"bytes": 400, "entryPoint": "src/main.js", "imports": []},
    "dist/js/chunk-CCCC3333.js": {"bytes": 40, "imports": []},
    "dist/js/lazy-DDDD4444.js": {"bytes": 30, "imports": []},
    "dist/css/app.BBBB2222.css": {"bytes": 20, "imports": []}
  }
}`

func loadSampleMetafile(t *testing.T) *Metafile {
	t.Helper()
	var m Metafile
	require.NoError(t, json.Unmarshal([]byte(sampleMetafile), &m))
	return &m
}

func TestMetafile_entryOutput(t *testing.T) {
	m := loadSampleMetafile(t)

	out, ok := m.entryOutput("src/main.js")
	require.True(t, ok)
	require.Equal(t, "dist/js/app.AAAA1111.js", out)

	_, ok = m.entryOutput("src/missing.js")
	require.False(t, ok)
}

func TestMetafile_scripts(t *testing.T) {
	m := loadSampleMetafile(t)

	scripts := m.scripts("dist/js/app.AAAA1111.js")
	require.Equal(t, []string{
		"dist/js/chunk-CCCC3333.js",
		"dist/js/app.AAAA1111.js",
	}, scripts)
}

func TestMetafile_isChunk(t *testing.T) {
	m := loadSampleMetafile(t)

	require.True(t, m.isChunk("dist/js/chunk-CCCC3333.js"))
	require.False(t, m.isChunk("dist/js/app.AAAA1111.js"))
	require.False(t, m.isChunk("dist/css/app.BBBB2222.css"))
	require.False(t, m.isChunk("dist/js/app.AAAA1111.js.map"))
}

func TestMetafileKey(t *testing.T) {
	workDir := filepath.Join(t.TempDir(), "project")

	require.Equal(t, "src/main.js", metafileKey(workDir, "./src/main.js"))
	require.Equal(t, "src/main.js", metafileKey(workDir, filepath.Join(workDir, "src", "main.js")))
}

func TestPublicURL(t *testing.T) {
	workDir := filepath.Join(t.TempDir(), "project")
	outDir := filepath.Join(workDir, "dist")

	require.Equal(t, "/js/app.js", publicURL(workDir, outDir, "/", "dist/js/app.js"))
	require.Equal(t, "/static/js/app.js", publicURL(workDir, outDir, "/static/", "dist/js/app.js"))
	require.Equal(t, "https://cdn.example.com/js/app.js", publicURL(workDir, outDir, "https://cdn.example.com", "dist/js/app.js"))
	require.Equal(t, "js/app.js", publicURL(workDir, outDir, "", "dist/js/app.js"))
}
