package engine

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/wolfeidau/prodbuild/internal/profile"
)

// writeFile writes data to name inside the output directory and records it.
func (b *build) writeFile(name string, data []byte) error {
	dst := filepath.Join(b.outDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	b.addOutput(dst, len(data))
	return nil
}

// copyAssets copies the static asset directory into the output directory.
// A missing directory is skipped.
func copyAssets(ctx context.Context, b *build, opts profile.Profile) error {
	src := opts.String("context", "static")
	if !filepath.IsAbs(src) {
		src = filepath.Join(b.workDir, src)
	}
	pattern := opts.String("from", "**/*")

	info, err := os.Stat(src)
	if err != nil || !info.IsDir() {
		b.log.Debug().Str("dir", src).Msg("No static assets to copy")
		return nil
	}

	copied := 0
	err = filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		if !matchAsset(pattern, filepath.ToSlash(rel)) {
			return nil
		}
		dst := filepath.Join(b.outDir, rel)
		size, err := copyFile(p, dst)
		if err != nil {
			return err
		}
		b.addOutput(dst, int(size))
		copied++
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to copy static assets: %w", err)
	}

	b.log.Info().Str("dir", src).Int("files", copied).Msg("Copied static assets")
	return nil
}

func matchAsset(pattern, rel string) bool {
	if pattern == "**/*" || pattern == "**" {
		return true
	}
	if ok, _ := path.Match(pattern, rel); ok {
		return true
	}
	ok, _ := path.Match(pattern, path.Base(rel))
	return ok
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return 0, err
	}
	return n, out.Close()
}
