package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/prodbuild/internal/profile"
)

const page = `<!DOCTYPE html>
<html>
  <head>
    <title>App</title>
  </head>
  <body>
    <!-- mount point -->
    <div id="app"></div>
  </body>
</html>
`

func TestInjectAssets(t *testing.T) {
	out := injectAssets(page, pageAssets{
		Styles:  []string{"/css/app.css"},
		Scripts: []string{"/js/chunk.js", "/js/app.js"},
	})

	link := strings.Index(out, `<link href="/css/app.css" rel="stylesheet">`)
	head := strings.Index(out, "</head>")
	chunk := strings.Index(out, `<script type="module" src="/js/chunk.js"></script>`)
	app := strings.Index(out, `<script type="module" src="/js/app.js"></script>`)
	body := strings.Index(out, "</body>")

	require.Positive(t, link)
	require.Less(t, link, head)
	require.Greater(t, chunk, head)
	require.Less(t, chunk, app)
	require.Less(t, app, body)
}

func TestInjectAssets_noClosingTags(t *testing.T) {
	out := injectAssets(`<div id="app"></div>`, pageAssets{Scripts: []string{"/js/app.js"}})
	require.True(t, strings.HasSuffix(out, `<script type="module" src="/js/app.js"></script>`+"\n"))
}

func TestInjectAssets_escapes(t *testing.T) {
	out := injectAssets(page, pageAssets{Scripts: []string{`/js/a"b.js`}})
	require.Contains(t, out, `src="/js/a&#34;b.js"`)
}

func TestMinifyHTML(t *testing.T) {
	out, err := minifyHTML(page, profile.Profile{
		"removeComments":        true,
		"collapseWhitespace":    true,
		"removeAttributeQuotes": true,
	})
	require.NoError(t, err)
	require.NotContains(t, out, "mount point")
	require.NotContains(t, out, "\n  ")
	require.Contains(t, out, "</html>")
	require.Contains(t, out, "<div id=app>")

	out, err = minifyHTML(page, profile.Profile{"removeComments": false})
	require.NoError(t, err)
	require.Contains(t, out, "mount point")
}
