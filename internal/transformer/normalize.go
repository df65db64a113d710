// Package transformer turns raw column-wise chunks into canonical records.
//
// A Normalizer compiles one coercion step per canonical field up front, then
// for each chunk resolves source columns through the schema mapper, coerces
// every cell and drops rows that end up without a smiles value. Coercion never
// fails a row: bad numbers become null.
package transformer

import (
	"database/sql"

	"bindingetl/internal/config"
	"bindingetl/internal/parser/csv"
	"bindingetl/internal/record"
	"bindingetl/internal/schema"
)

// DefaultProgressEvery is the emitted-record interval at which OnProgress fires.
const DefaultProgressEvery = 100_000

// Options configures a Normalizer.
type Options struct {
	// Rules overrides schema.DefaultRules.
	Rules []schema.Rule
	// Sentinels overrides DefaultSentinels.
	Sentinels []string
	// ProgressEvery is the milestone interval; <=0 means DefaultProgressEvery.
	ProgressEvery int64
	// OnProgress is called with the running total whenever it crosses a
	// multiple of ProgressEvery. Advisory only.
	OnProgress func(total int64)
}

// OptionsFrom reads normalizer options from a transform options bag.
// Recognized keys: sentinels ([]string), progress_every (int).
func OptionsFrom(o config.Options) Options {
	return Options{
		Sentinels:     o.StringSlice("sentinels"),
		ProgressEvery: int64(o.Int("progress_every", DefaultProgressEvery)),
	}
}

// ChunkStats summarizes one Normalize call.
type ChunkStats struct {
	RowsIn        int
	Emitted       int
	MissingSmiles int
	// NumericNulls counts non-empty numeric cells that failed to parse.
	NumericNulls int
}

// Dropped returns the rows removed by the validity filter.
func (s ChunkStats) Dropped() int { return s.RowsIn - s.Emitted }

type fieldStep func(fr *schema.Frame, row int, rec *record.Record) (rejected bool)

// Normalizer converts chunks to records. It keeps a running total across
// calls and is not safe for concurrent use.
type Normalizer struct {
	mapper    *schema.Mapper
	sentinels Sentinels
	steps     [record.NumFields]fieldStep
	every     int64
	onProg    func(int64)
	total     int64
}

// NewNormalizer compiles the per-field plan.
func NewNormalizer(opt Options) (*Normalizer, error) {
	rules := opt.Rules
	if len(rules) == 0 {
		rules = schema.DefaultRules
	}
	sent := NewSentinels(opt.Sentinels)
	m, err := schema.NewMapper(rules, sent.IsNull)
	if err != nil {
		return nil, err
	}
	n := &Normalizer{
		mapper:    m,
		sentinels: sent,
		every:     opt.ProgressEvery,
		onProg:    opt.OnProgress,
	}
	if n.every <= 0 {
		n.every = DefaultProgressEvery
	}
	for f, fd := range record.Fields {
		n.steps[f] = n.compileStep(f, fd.Kind)
	}
	return n, nil
}

func (n *Normalizer) compileStep(f int, k record.Kind) fieldStep {
	switch k {
	case record.KindFloat:
		return func(fr *schema.Frame, row int, rec *record.Record) bool {
			raw, ok := fr.Value(f, row)
			if !ok {
				return false
			}
			v, rejected := ParseFloat(raw)
			rec.SetFloat(f, v)
			return rejected
		}
	default:
		return func(fr *schema.Frame, row int, rec *record.Record) bool {
			raw, ok := fr.Value(f, row)
			rec.SetText(f, n.sentinels.Fold(sql.NullString{String: raw, Valid: ok}))
			return false
		}
	}
}

// Mapper exposes the schema mapper, mainly for Describe.
func (n *Normalizer) Mapper() *schema.Mapper { return n.mapper }

// Total returns the number of records emitted so far.
func (n *Normalizer) Total() int64 { return n.total }

// Normalize converts one chunk. Records keep source row order; rows without
// smiles are dropped. An empty result is valid and returns nil.
func (n *Normalizer) Normalize(c *csv.Chunk) ([]record.Record, ChunkStats) {
	fr := n.mapper.Resolve(c)
	st := ChunkStats{RowsIn: fr.Len()}

	var out []record.Record
	for row := 0; row < fr.Len(); row++ {
		var rec record.Record
		// smiles first so that dropped rows skip the remaining fields.
		n.steps[record.Smiles](fr, row, &rec)
		if rec.Smiles == "" {
			st.MissingSmiles++
			continue
		}
		for f := record.Smiles + 1; f < record.NumFields; f++ {
			if n.steps[f](fr, row, &rec) {
				st.NumericNulls++
			}
		}
		if out == nil {
			out = make([]record.Record, 0, fr.Len()-row)
		}
		out = append(out, rec)
	}
	st.Emitted = len(out)
	n.advance(int64(len(out)))
	return out, st
}

func (n *Normalizer) advance(k int64) {
	if k == 0 {
		return
	}
	before := n.total / n.every
	n.total += k
	if n.onProg != nil && n.total/n.every > before {
		n.onProg(n.total)
	}
}
