package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"
)

// DefaultExtractWorkers bounds concurrent entry extraction.
const DefaultExtractWorkers = 4

// Extracted describes one regular file written by Extract. Rel is relative to
// the extraction directory and uses the OS separator.
type Extracted struct {
	Rel  string
	Path string
	Size int64
}

// Extract unpacks every regular file of the archive at zipPath into dir using
// up to workers goroutines. All entry names are checked before anything is
// written; a name escaping dir fails the whole extraction with ErrUnsafePath.
// Entries whose data exceeds the declared size fail with ErrEntryTooLarge.
// When a name repeats, only its last entry is extracted.
func Extract(ctx context.Context, zipPath, dir string, workers int) ([]Extracted, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", zipPath, err)
	}
	defer zr.Close()

	if workers <= 0 {
		workers = DefaultExtractWorkers
	}

	var (
		files []*zip.File
		rels  []string
		seen  = map[string]int{}
	)
	for _, f := range zr.File {
		rel := filepath.FromSlash(strings.TrimPrefix(f.Name, "./"))
		if !filepath.IsLocal(rel) {
			return nil, fmt.Errorf("%w: %q", ErrUnsafePath, f.Name)
		}
		if !f.Mode().IsRegular() {
			continue
		}
		rel = filepath.Clean(rel)
		// A repeated name overwrites the earlier entry, as unzip does.
		if i, ok := seen[rel]; ok {
			files[i] = f
			continue
		}
		seen[rel] = len(files)
		files = append(files, f)
		rels = append(rels, rel)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}

	out := make([]Extracted, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rel := rels[i]
			dst := filepath.Join(dir, rel)
			n, err := extractOne(f, dst)
			if err != nil {
				return fmt.Errorf("extract %s: %w", f.Name, err)
			}
			out[i] = Extracted{Rel: rel, Path: dst, Size: n}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func extractOne(f *zip.File, dst string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	w, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	limit := int64(f.UncompressedSize64)
	n, err := io.CopyN(w, rc, limit+1)
	if err != nil && !errors.Is(err, io.EOF) {
		w.Close()
		return n, err
	}
	if n > limit {
		w.Close()
		return n, ErrEntryTooLarge
	}
	return n, w.Close()
}

// PickTable chooses the tabular file to ingest: the lexically first *.tsv at
// the top of the extraction directory, otherwise the largest extracted file.
func PickTable(files []Extracted) (string, error) {
	var tsv []string
	for _, f := range files {
		if filepath.Dir(f.Rel) == "." && strings.EqualFold(filepath.Ext(f.Rel), ".tsv") {
			tsv = append(tsv, f.Path)
		}
	}
	if len(tsv) > 0 {
		sort.Strings(tsv)
		return tsv[0], nil
	}
	if len(files) == 0 {
		return "", ErrEmptyArchive
	}
	best := files[0]
	for _, f := range files[1:] {
		if f.Size > best.Size {
			best = f
		}
	}
	return best.Path, nil
}
