package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bindingetl/internal/config"
	"bindingetl/internal/datasource"
	"bindingetl/internal/datasource/file"
	"bindingetl/internal/datasource/httpds"
	"bindingetl/internal/metrics"
	"bindingetl/internal/parser/csv"
	"bindingetl/internal/record"
	"bindingetl/internal/storage"
	"bindingetl/internal/transformer"
)

// thisMany caps the distinct messages kept per error aggregate.
const thisMany = 5

// buildPlan is a fully resolved build: every default, env override and
// option bag has been applied.
type buildPlan struct {
	job       string
	src       datasource.Source
	srcName   string
	reader    csv.Options
	normalize transformer.Options
	storage   storage.Config
}

// summary is what a build reports at the end.
type summary struct {
	RunID         string
	Chunks        int64
	ChunksWritten int64
	ChunksSkipped int64
	ChunksEmpty   int64
	Reader        csv.ReaderStats
	Emitted       int64
	MissingSmiles int64
	NumericNulls  int64
	Written       int64
}

// Test seams.
var (
	newSink  = storage.New
	newRunID = uuid.NewString
)

// getenvInt reads an int from environment, returning def when unset/invalid.
func getenvInt(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

// pickInt chooses the first positive value 'a', otherwise returns 'b'.
func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}

// planFromPipeline resolves p into a buildPlan. Runtime values win over env
// (BINDINGETL_CHUNK_SIZE, BINDINGETL_PROGRESS_EVERY), which win over the
// stage option bags.
func planFromPipeline(p config.Pipeline) (buildPlan, error) {
	plan := buildPlan{job: p.Job}

	switch p.Source.Kind {
	case "", "file":
		if strings.TrimSpace(p.Source.File.Path) == "" {
			return plan, errors.New("no input: set source.file.path or --input")
		}
		plan.src = file.NewLocal(p.Source.File.Path)
		plan.srcName = p.Source.File.Path
	case "http":
		c := httpds.NewClient(httpds.Config{MaxRetries: p.Source.HTTP.MaxRetries})
		plan.src = httpds.Source{Client: c, URL: p.Source.HTTP.URL}
		plan.srcName = p.Source.HTTP.URL
	default:
		return plan, fmt.Errorf("unsupported source.kind=%s", p.Source.Kind)
	}

	ro, err := csv.OptionsFrom(p.Parser.Options)
	if err != nil {
		return plan, fmt.Errorf("parser options: %w", err)
	}
	ro.ChunkSize = pickInt(p.Runtime.ChunkSize, getenvInt("BINDINGETL_CHUNK_SIZE", ro.ChunkSize))
	plan.reader = ro

	no := transformer.OptionsFrom(p.Transform.Options)
	no.ProgressEvery = int64(pickInt(p.Runtime.ProgressEvery,
		getenvInt("BINDINGETL_PROGRESS_EVERY", int(no.ProgressEvery))))
	if path := p.Transform.Options.String("sentinels_file", ""); path != "" {
		extra, err := file.ReadList(path)
		if err != nil {
			return plan, fmt.Errorf("transform options: %w", err)
		}
		if no.Sentinels == nil {
			no.Sentinels = append(no.Sentinels, transformer.DefaultSentinels...)
		}
		no.Sentinels = append(no.Sentinels, extra...)
	}
	plan.normalize = no

	plan.storage = storage.Config{
		Kind:            p.Storage.Kind,
		Path:            p.Storage.Path,
		Compression:     p.Storage.Compression,
		DSN:             p.Storage.DSN,
		Table:           p.Storage.Table,
		AutoCreateTable: p.Storage.AutoCreateTable,
	}
	return plan, nil
}

// runBuild streams the source through the normalizer into the sink, one chunk
// at a time. A chunk the sink rejects is logged and skipped; a broken sink,
// a source failure or cancellation ends the run with an error. The sink is
// always closed, and a failed close fails the run. progress receives the
// human-readable progress lines.
func runBuild(ctx context.Context, plan buildPlan, progress io.Writer) (sum summary, err error) {
	out := log.New(progress, "", 0)
	sum.RunID = newRunID()

	parseAgg := newErrAgg(thisMany)
	chunkAgg := newErrAgg(thisMany)

	start := time.Now()
	rd, err := csv.NewChunkReader(ctx, plan.src, plan.reader, func(line int, err error) {
		parseAgg.add(fmt.Sprintf("line %d: %v", line, err))
	})
	metrics.RecordStep(plan.job, "open", err, time.Since(start))
	if err != nil {
		return sum, fmt.Errorf("open source %s: %w", plan.srcName, err)
	}
	defer rd.Close()

	log.Printf("source: path=%s encoding=%s columns=%d fingerprint=%016x",
		plan.srcName, rd.Encoding(), len(rd.Header()), rd.Fingerprint())

	no := plan.normalize
	no.OnProgress = func(total int64) { out.Printf("Processed %d rows...", total) }
	norm, err := transformer.NewNormalizer(no)
	if err != nil {
		return sum, fmt.Errorf("normalizer: %w", err)
	}
	logSchemaMatches(norm, rd.Header())

	cfg := plan.storage
	cfg.Metadata = map[string]string{
		storage.MetaRunID:             sum.RunID,
		storage.MetaSchemaVersion:     record.SchemaVersion,
		storage.MetaHeaderFingerprint: fmt.Sprintf("%016x", rd.Fingerprint()),
		storage.MetaSourceEncoding:    string(rd.Encoding()),
		storage.MetaSource:            plan.srcName,
	}
	sink, err := newSink(ctx, cfg)
	if err != nil {
		return sum, fmt.Errorf("open sink kind=%s: %w", cfg.Kind, err)
	}
	defer func() {
		cerr := sink.Close()
		metrics.RecordStep(plan.job, "finalize", cerr, 0)
		if cerr != nil && err == nil {
			err = fmt.Errorf("finalize sink: %w", cerr)
		}
	}()

	buildStart := time.Now()
	defer func() {
		sum.Reader = rd.Stats()
		metrics.RecordStep(plan.job, "build", err, time.Since(buildStart))
		metrics.RecordRows(plan.job, metrics.RowsRead, sum.Reader.Rows)
		metrics.RecordRows(plan.job, metrics.RowsMalformed, sum.Reader.Skipped())
		metrics.RecordRows(plan.job, metrics.RowsEmitted, sum.Emitted)
		metrics.RecordRows(plan.job, metrics.RowsMissingSmiles, sum.MissingSmiles)
		metrics.RecordRows(plan.job, metrics.RowsNumericNull, sum.NumericNulls)
		metrics.RecordRows(plan.job, metrics.RowsWritten, sum.Written)
		logAgg("malformed rows skipped", parseAgg)
		logAgg("chunks skipped", chunkAgg)
	}()

	for {
		if cerr := ctx.Err(); cerr != nil {
			return sum, fmt.Errorf("interrupted after %d chunks: %w", sum.Chunks, cerr)
		}
		chunk, err := rd.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sum, fmt.Errorf("read chunk %d: %w", sum.Chunks+1, err)
		}
		sum.Chunks++

		recs, st := norm.Normalize(chunk)
		sum.Emitted += int64(st.Emitted)
		sum.MissingSmiles += int64(st.MissingSmiles)
		sum.NumericNulls += int64(st.NumericNulls)
		if len(recs) == 0 {
			sum.ChunksEmpty++
			metrics.RecordChunk(plan.job, metrics.ChunkEmpty)
			continue
		}

		n, err := sink.WriteChunk(ctx, recs)
		if errors.Is(err, storage.ErrSinkBroken) {
			return sum, fmt.Errorf("chunk %d (lines %d-%d): %w", chunk.Index, chunk.FirstLine, chunk.LastLine, err)
		}
		if err != nil {
			sum.ChunksSkipped++
			metrics.RecordChunk(plan.job, metrics.ChunkSkipped)
			chunkAgg.add(fmt.Sprintf("chunk %d (lines %d-%d): %v", chunk.Index, chunk.FirstLine, chunk.LastLine, err))
			log.Printf("Error writing chunk: index=%d lines=%d-%d records=%d err=%v",
				chunk.Index, chunk.FirstLine, chunk.LastLine, len(recs), err)
			continue
		}
		sum.ChunksWritten++
		sum.Written += n
		metrics.RecordChunk(plan.job, metrics.ChunkWritten)
	}

	out.Printf("Done. Total rows: %d", sum.Written)
	return sum, nil
}

// logSchemaMatches logs, once per run, which source columns feed each
// canonical field. Header drift between dataset releases shows up here.
func logSchemaMatches(n *transformer.Normalizer, header []string) {
	for _, m := range n.Mapper().Describe(header) {
		switch {
		case len(m.Sources) == 0:
			log.Printf("schema: field=%s sources=none (all null)", m.Field)
		case m.Fallback:
			log.Printf("schema: field=%s sources=%q fallback=true", m.Field, m.Sources)
		default:
			log.Printf("schema: field=%s sources=%q", m.Field, m.Sources)
		}
	}
}

func logSummary(s summary) {
	log.Printf(
		"summary: run_id=%s chunks=%d written_chunks=%d skipped_chunks=%d empty_chunks=%d rows_read=%d malformed=%d padded=%d emitted=%d missing_smiles=%d numeric_nulls=%d written=%d",
		s.RunID, s.Chunks, s.ChunksWritten, s.ChunksSkipped, s.ChunksEmpty,
		s.Reader.Rows, s.Reader.Skipped(), s.Reader.Padded,
		s.Emitted, s.MissingSmiles, s.NumericNulls, s.Written,
	)
}

// errAgg keeps a count and the first few messages of a class of errors.
type errAgg struct {
	mu    sync.Mutex
	limit int
	count int
	first []string
}

func newErrAgg(limit int) *errAgg {
	return &errAgg{limit: limit}
}

func (a *errAgg) add(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.count < a.limit {
		a.first = append(a.first, msg)
	}
	a.count++
}

func logAgg(what string, a *errAgg) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.count == 0 {
		return
	}
	log.Printf("%s: %d (showing first %d)", what, a.count, len(a.first))
	for i, s := range a.first {
		log.Printf("  #%03d: %s", i+1, s)
	}
}
