package engine

import (
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tdewolff/minify/v2"
	minhtml "github.com/tdewolff/minify/v2/html"

	"github.com/wolfeidau/prodbuild/internal/profile"
	"github.com/wolfeidau/prodbuild/internal/resolver"
)

// pageAssets are the URLs injected into the HTML page, in dependency order.
type pageAssets struct {
	Styles  []string
	Scripts []string
}

// collectAssets walks every entry's output, dependencies first, so shared
// chunks are loaded before the entries that import them.
func (b *build) collectAssets() (pageAssets, error) {
	var (
		assets  pageAssets
		scripts = make(map[string]bool)
		styles  = make(map[string]bool)
	)

	names := make([]string, 0, len(b.entries))
	for name := range b.entries {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		output, ok := b.meta.entryOutput(b.entries[name])
		if !ok {
			return pageAssets{}, fmt.Errorf("entry %q not found in metafile", name)
		}

		for _, key := range b.meta.scripts(output) {
			if scripts[key] {
				continue
			}
			scripts[key] = true
			assets.Scripts = append(assets.Scripts, publicURL(b.workDir, b.outDir, b.publicPath, key))
		}

		if css := b.meta.Outputs[output].CSSBundle; css != "" && !styles[css] {
			styles[css] = true
			assets.Styles = append(assets.Styles, publicURL(b.workDir, b.outDir, b.publicPath, css))
		}
	}
	return assets, nil
}

func generateHTML(ctx context.Context, b *build, opts profile.Profile) error {
	template := opts.String("template", resolver.DefaultIndexPath)
	if !filepath.IsAbs(template) {
		template = filepath.Join(b.workDir, template)
	}

	data, err := os.ReadFile(template)
	if err != nil {
		return fmt.Errorf("failed to read html template: %w", err)
	}
	page := string(data)

	if opts.Bool("inject", true) {
		assets, err := b.collectAssets()
		if err != nil {
			return err
		}
		page = injectAssets(page, assets)
	}

	if minifyOpts := profile.Profile(opts.Map("minify")); len(minifyOpts) > 0 {
		page, err = minifyHTML(page, minifyOpts)
		if err != nil {
			return err
		}
	}

	return b.writeFile(opts.String("filename", resolver.HTMLFilename), []byte(page))
}

// injectAssets places stylesheet links before </head> and module scripts
// before </body>, appending them when the closing tag is absent.
func injectAssets(page string, assets pageAssets) string {
	var links, scripts strings.Builder
	for _, href := range assets.Styles {
		fmt.Fprintf(&links, `<link href="%s" rel="stylesheet">`, html.EscapeString(href))
		links.WriteString("\n")
	}
	for _, src := range assets.Scripts {
		fmt.Fprintf(&scripts, `<script type="module" src="%s"></script>`, html.EscapeString(src))
		scripts.WriteString("\n")
	}

	page = insertBefore(page, "</head>", links.String())
	page = insertBefore(page, "</body>", scripts.String())
	return page
}

func insertBefore(page, tag, content string) string {
	if content == "" {
		return page
	}
	idx := strings.LastIndex(strings.ToLower(page), tag)
	if idx < 0 {
		return page + content
	}
	return page[:idx] + content + page[idx:]
}

func minifyHTML(page string, opts profile.Profile) (string, error) {
	m := minify.New()
	m.Add("text/html", &minhtml.Minifier{
		KeepComments:     !opts.Bool("removeComments", false),
		KeepWhitespace:   !opts.Bool("collapseWhitespace", false),
		KeepQuotes:       !opts.Bool("removeAttributeQuotes", false),
		KeepDocumentTags: true,
		KeepEndTags:      true,
	})

	out, err := m.String("text/html", page)
	if err != nil {
		return "", fmt.Errorf("failed to minify html: %w", err)
	}
	return out, nil
}
