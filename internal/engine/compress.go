package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"

	"github.com/wolfeidau/prodbuild/internal/profile"
	"github.com/wolfeidau/prodbuild/internal/resolver"
)

// compressOutputs writes a precompressed sibling for every output whose
// extension is listed and whose size reaches the threshold.
func compressOutputs(ctx context.Context, b *build, opts profile.Profile) error {
	algorithm := opts.String("algorithm", "gzip")
	suffix, err := compressedSuffix(algorithm)
	if err != nil {
		return err
	}

	threshold := opts.Int("threshold", resolver.DefaultCompressThreshold)
	extensions := opts.Strings("extensions", []string{"js", "css"})
	for i, ext := range extensions {
		extensions[i] = strings.TrimPrefix(ext, ".")
	}

	// snapshot, the loop appends to Outputs
	outputs := slices.Clone(b.result.Outputs)
	compressed := 0
	for _, out := range outputs {
		if out.Bytes < threshold {
			continue
		}
		if !slices.Contains(extensions, strings.TrimPrefix(path.Ext(out.Path), ".")) {
			continue
		}

		src := filepath.Join(b.outDir, filepath.FromSlash(out.Path))
		dst := src + suffix
		size, err := compressFile(b.log, algorithm, src, dst)
		if err != nil {
			return fmt.Errorf("failed to compress %s: %w", out.Path, err)
		}
		b.addOutput(dst, int(size))
		compressed++
	}

	b.log.Info().Str("algorithm", algorithm).Int("files", compressed).Msg("Compressed outputs")
	return nil
}

func compressedSuffix(algorithm string) (string, error) {
	switch algorithm {
	case "gzip":
		return ".gz", nil
	case "zstd":
		return ".zst", nil
	}
	return "", fmt.Errorf("%w: unsupported compression algorithm %q", ErrInvalidOption, algorithm)
}

func compressFile(log zerolog.Logger, algorithm, srcPath, dstPath string) (int64, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return 0, err
	}

	var enc io.WriteCloser
	switch algorithm {
	case "zstd":
		enc, err = zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	default:
		enc, err = gzip.NewWriterLevel(dst, gzip.BestCompression)
	}
	if err != nil {
		dst.Close()
		return 0, err
	}

	if _, err := io.Copy(enc, src); err != nil {
		if closeErr := enc.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close encoder during error cleanup")
		}
		dst.Close()
		os.Remove(dstPath) // Clean up partial file
		return 0, err
	}

	if err := enc.Close(); err != nil {
		dst.Close()
		os.Remove(dstPath)
		return 0, err
	}

	info, err := dst.Stat()
	if err != nil {
		dst.Close()
		return 0, err
	}
	return info.Size(), dst.Close()
}
