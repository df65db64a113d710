package csv

// Chunk is one bounded batch of raw source rows, stored column-wise: each
// source column name maps to its ordered values. An empty string is a null.
//
// A Chunk carries no types. It is consumed by the schema mapper and then
// discarded; the typed container is record.Record.
type Chunk struct {
	// Index is the 1-based position of this chunk in the source.
	Index int
	// FirstLine and LastLine are the source line numbers of the first and
	// last row (header is line 1).
	FirstLine int
	LastLine  int

	columns []string // unique names, header order
	pos     []int    // pos[i] = source field index of columns[i]
	values  map[string][]string
	rows    int
}

// newChunk prepares an empty chunk for a header. When a name repeats, the
// first occurrence wins and later ones are ignored.
func newChunk(header []string, capacity int) *Chunk {
	c := &Chunk{
		columns: make([]string, 0, len(header)),
		pos:     make([]int, 0, len(header)),
		values:  make(map[string][]string, len(header)),
	}
	for i, name := range header {
		if _, dup := c.values[name]; dup {
			continue
		}
		c.columns = append(c.columns, name)
		c.pos = append(c.pos, i)
		c.values[name] = make([]string, 0, capacity)
	}
	return c
}

// NewChunk builds a chunk from rows aligned to columns. It is mainly useful to
// callers that already hold tokenized rows (tests, alternative readers).
// Rows shorter than columns are padded with nulls; longer rows are truncated.
func NewChunk(columns []string, rows [][]string) *Chunk {
	c := newChunk(columns, len(rows))
	for _, r := range rows {
		c.appendRow(r)
	}
	return c
}

func (c *Chunk) appendRow(rec []string) {
	for i, name := range c.columns {
		v := ""
		if si := c.pos[i]; si < len(rec) {
			v = rec[si]
		}
		c.values[name] = append(c.values[name], v)
	}
	c.rows++
}

// Len returns the number of rows.
func (c *Chunk) Len() int { return c.rows }

// Columns returns the source column names in header order.
func (c *Chunk) Columns() []string { return c.columns }

// Has reports whether the chunk carries a column with this exact name.
func (c *Chunk) Has(name string) bool {
	_, ok := c.values[name]
	return ok
}

// Column returns the values of a column, or nil and false when absent.
func (c *Chunk) Column(name string) ([]string, bool) {
	v, ok := c.values[name]
	return v, ok
}
