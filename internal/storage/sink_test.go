package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bindingetl/internal/record"
)

type nopSink struct{ cfg Config }

func (nopSink) WriteChunk(context.Context, []record.Record) (int64, error) { return 0, nil }
func (nopSink) Close() error                                               { return nil }

func TestRegistry_NewRoutesByKind(t *testing.T) {
	var got Config
	Register("test-nop", func(_ context.Context, cfg Config) (Sink, error) {
		got = cfg
		return nopSink{cfg: cfg}, nil
	})

	s, err := New(context.Background(), Config{Kind: "test-nop", Path: "x.out"})
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "x.out", got.Path)
	assert.Contains(t, Kinds(), "test-nop")
}

func TestRegistry_UnknownKind(t *testing.T) {
	_, err := New(context.Background(), Config{Kind: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown storage.kind="nope"`)
}
