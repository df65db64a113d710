// Package datasource defines the input abstraction for the pipeline.
package datasource

import (
	"context"
	"io"
)

// Source yields a fresh reader over the whole input on every Open.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
