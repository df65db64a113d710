// Package metrics is a small backend-agnostic facade for run metrics. A
// global backend defaults to a no-op, so instrumented code can always call in;
// concrete systems (Pushgateway, DogStatsD) live in subpackages and are
// installed by the CLI.
package metrics

import "time"

// Metric names shared by all backends.
const (
	StepTotal    = "bindingetl_step_total"
	StepDuration = "bindingetl_step_duration_seconds"
	RowsTotal    = "bindingetl_rows_total"
	ChunksTotal  = "bindingetl_chunks_total"
)

// Row kinds for RecordRows.
const (
	RowsRead          = "read"
	RowsMalformed     = "malformed"
	RowsEmitted       = "emitted"
	RowsMissingSmiles = "missing_smiles"
	RowsNumericNull   = "numeric_null"
	RowsWritten       = "written"
)

// Chunk statuses for RecordChunk.
const (
	ChunkWritten = "written"
	ChunkSkipped = "skipped"
	ChunkEmpty   = "empty"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface a metrics system must implement.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes buffered metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs b. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep counts one execution of a pipeline step (fetch, open, build,
// finalize) and observes its duration.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRows adds delta rows of the given kind. Non-positive deltas are
// dropped.
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordChunk counts one chunk outcome.
func RecordChunk(job, status string) {
	backend.IncCounter(ChunksTotal, 1, Labels{"job": job, "status": status})
}
