package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"bindingetl/internal/config"
	"bindingetl/internal/datasource"
)

// DefaultChunkSize bounds the number of rows held in memory per chunk.
const DefaultChunkSize = 100_000

// ErrTooManyFields marks a row that has more fields than the header, which
// usually means an unescaped delimiter inside a value.
var ErrTooManyFields = errors.New("row has more fields than header")

// Options configures a ChunkReader.
type Options struct {
	// Comma is the field delimiter. Zero means tab.
	Comma rune
	// ChunkSize is the maximum number of rows per chunk. Zero means
	// DefaultChunkSize.
	ChunkSize int
	// Encoding selects the text decoding. Empty means auto.
	Encoding Encoding
	// TrimSpace trims edge whitespace from every value.
	TrimSpace bool
}

// OptionsFrom reads parser options from a config bag. Recognized keys:
//
//	comma (string), chunk_size (int), encoding (string), trim_space (bool)
func OptionsFrom(o config.Options) (Options, error) {
	enc, err := ParseEncoding(o.String("encoding", "auto"))
	if err != nil {
		return Options{}, err
	}
	return Options{
		Comma:     o.Rune("comma", '\t'),
		ChunkSize: o.Int("chunk_size", DefaultChunkSize),
		Encoding:  enc,
		TrimSpace: o.Bool("trim_space", true),
	}, nil
}

// ReaderStats counts what the reader saw. Skipped rows are never surfaced as
// errors; they only show up here and through the onErr callback.
type ReaderStats struct {
	Rows      int64 // rows delivered in chunks
	Malformed int64 // rows the tokenizer rejected
	TooLong   int64 // rows with more fields than the header
	Padded    int64 // rows with fewer fields than the header
	Chunks    int64
}

// Skipped returns the number of source rows that never reached a chunk.
func (s ReaderStats) Skipped() int64 { return s.Malformed + s.TooLong }

// ChunkReader streams a delimited text source as a sequence of column-wise
// chunks. The encoding is decided once, before the first byte is tokenized.
//
// A ChunkReader is not safe for concurrent use.
type ChunkReader struct {
	rc          io.ReadCloser
	cr          *csv.Reader
	header      []string
	chunkSize   int
	trim        bool
	enc         Encoding
	fingerprint uint64
	onErr       func(line int, err error)
	stats       ReaderStats
	done        bool
}

// NewChunkReader opens src, resolves its encoding and reads the header row.
// Failing to open the source or to read a header is fatal and returned.
//
// onErr receives recoverable row errors (skipped rows); it may be nil.
func NewChunkReader(ctx context.Context, src datasource.Source, opt Options, onErr func(line int, err error)) (*ChunkReader, error) {
	if opt.Comma == 0 {
		opt.Comma = '\t'
	}
	if opt.ChunkSize <= 0 {
		opt.ChunkSize = DefaultChunkSize
	}
	if opt.Encoding == "" {
		opt.Encoding = EncodingAuto
	}

	enc, err := resolveEncoding(ctx, src, opt.Encoding)
	if err != nil {
		return nil, err
	}

	rc, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}

	cr := csv.NewReader(decodeReader(rc, enc))
	cr.Comma = opt.Comma
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	hdr, err := cr.Read()
	if err != nil {
		rc.Close()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read header: empty source")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	header := NormalizeHeader(hdr)

	return &ChunkReader{
		rc:          rc,
		cr:          cr,
		header:      header,
		chunkSize:   opt.ChunkSize,
		trim:        opt.TrimSpace,
		enc:         enc,
		fingerprint: HeaderFingerprint(header),
		onErr:       onErr,
	}, nil
}

// Header returns the normalized header row.
func (r *ChunkReader) Header() []string { return r.header }

// Encoding returns the encoding chosen for the source.
func (r *ChunkReader) Encoding() Encoding { return r.enc }

// Fingerprint returns the xxh3 hash of the normalized header.
func (r *ChunkReader) Fingerprint() uint64 { return r.fingerprint }

// Stats returns a snapshot of the reader counters.
func (r *ChunkReader) Stats() ReaderStats { return r.stats }

// Close releases the underlying source.
func (r *ChunkReader) Close() error { return r.rc.Close() }

// Next returns the next chunk of at most ChunkSize rows, or io.EOF once the
// source is exhausted. A chunk is never empty. Tokenizer errors and overlong
// rows are skipped and reported through onErr; I/O errors from the underlying
// source are returned.
func (r *ChunkReader) Next(ctx context.Context) (*Chunk, error) {
	if r.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := newChunk(r.header, r.chunkSize)
	width := len(r.header)

	for c.Len() < r.chunkSize {
		rec, err := r.cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.done = true
				break
			}
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				r.stats.Malformed++
				r.report(pe.StartLine, err)
				continue
			}
			return nil, fmt.Errorf("read source: %w", err)
		}

		line, _ := r.cr.FieldPos(0)
		if len(rec) > width {
			r.stats.TooLong++
			r.report(line, fmt.Errorf("%w: got %d, header has %d", ErrTooManyFields, len(rec), width))
			continue
		}
		if len(rec) < width {
			r.stats.Padded++
		}
		if r.trim {
			for i, v := range rec {
				if hasEdgeSpace(v) {
					rec[i] = strings.TrimSpace(v)
				}
			}
		}

		if c.Len() == 0 {
			c.FirstLine = line
		}
		c.LastLine = line
		c.appendRow(rec)
	}

	if c.Len() == 0 {
		return nil, io.EOF
	}
	r.stats.Chunks++
	r.stats.Rows += int64(c.Len())
	c.Index = int(r.stats.Chunks)
	return c, nil
}

func (r *ChunkReader) report(line int, err error) {
	if r.onErr != nil {
		r.onErr(line, err)
	}
}
