package engine

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/minio/crc64nvme"
	"github.com/mr-tron/base58"

	"github.com/wolfeidau/prodbuild/internal/profile"
	"github.com/wolfeidau/prodbuild/internal/resolver"
)

// Manifest maps entry names to the files a page needs to load them.
type Manifest struct {
	BuildID string                   `json:"buildId"`
	Entries map[string]ManifestEntry `json:"entries"`
	Files   map[string]ManifestFile  `json:"files"`
}

type ManifestEntry struct {
	File    string   `json:"file"`
	Imports []string `json:"imports,omitempty"`
	CSS     []string `json:"css,omitempty"`
}

type ManifestFile struct {
	Bytes    int    `json:"bytes"`
	Checksum string `json:"checksum"`
}

func writeManifest(ctx context.Context, b *build, opts profile.Profile) error {
	manifest, err := b.buildManifest()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	return b.writeFile(opts.String("filename", resolver.ManifestFile), data)
}

func (b *build) buildManifest() (*Manifest, error) {
	manifest := &Manifest{
		BuildID: b.id,
		Entries: make(map[string]ManifestEntry, len(b.entries)),
		Files:   make(map[string]ManifestFile),
	}

	for name, input := range b.entries {
		output, ok := b.meta.entryOutput(input)
		if !ok {
			return nil, fmt.Errorf("entry %q not found in metafile", name)
		}

		entry := ManifestEntry{File: publicURL(b.workDir, b.outDir, b.publicPath, output)}
		for _, key := range b.meta.scripts(output) {
			if key == output {
				continue
			}
			entry.Imports = append(entry.Imports, publicURL(b.workDir, b.outDir, b.publicPath, key))
		}
		if css := b.meta.Outputs[output].CSSBundle; css != "" {
			entry.CSS = append(entry.CSS, publicURL(b.workDir, b.outDir, b.publicPath, css))
		}
		manifest.Entries[name] = entry
	}

	for _, key := range b.meta.outputKeys() {
		checksum, err := fileChecksum(filepath.Join(b.workDir, filepath.FromSlash(key)))
		if err != nil {
			return nil, err
		}
		manifest.Files[publicURL(b.workDir, b.outDir, b.publicPath, key)] = ManifestFile{
			Bytes:    b.meta.Outputs[key].Bytes,
			Checksum: checksum,
		}
	}

	return manifest, nil
}

// fileChecksum returns the base58 encoded CRC-64/NVME of a file.
func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open output: %w", err)
	}
	defer f.Close()

	h := crc64nvme.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to checksum output: %w", err)
	}

	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], h.Sum64())
	return base58.Encode(sum[:]), nil
}
