package transformer

import (
	"database/sql"
	"errors"
	"math"
	"strconv"
	"strings"
)

// DefaultSentinels are stringified placeholders that upstream tooling leaves
// behind for missing values. They are matched exactly (case-sensitive).
var DefaultSentinels = []string{"nan", "None"}

// ParseFloat converts a raw cell to a nullable float64. It never fails:
// empty, non-numeric, NaN, hex and underscore-grouped inputs are null.
// Out-of-range magnitudes keep strconv's ±Inf.
//
// The second result reports whether a non-empty input was rejected.
func ParseFloat(s string) (sql.NullFloat64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullFloat64{}, false
	}
	if strings.IndexByte(s, '_') >= 0 || hasHexPrefix(s) {
		return sql.NullFloat64{}, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return sql.NullFloat64{}, true
	}
	if math.IsNaN(f) {
		return sql.NullFloat64{}, false
	}
	return sql.NullFloat64{Float64: f, Valid: true}, false
}

func hasHexPrefix(s string) bool {
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// Sentinels is a set of literal values folded to null in text fields.
type Sentinels map[string]struct{}

// NewSentinels builds a set; nil or empty input yields DefaultSentinels.
func NewSentinels(list []string) Sentinels {
	if len(list) == 0 {
		list = DefaultSentinels
	}
	s := make(Sentinels, len(list))
	for _, v := range list {
		s[v] = struct{}{}
	}
	return s
}

// Has reports whether v is a sentinel.
func (s Sentinels) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Fold returns null for sentinel or empty text and v otherwise. Fold is
// idempotent.
func (s Sentinels) Fold(v sql.NullString) sql.NullString {
	if !v.Valid || v.String == "" || s.Has(v.String) {
		return sql.NullString{}
	}
	return v
}

// IsNull reports whether a raw cell counts as missing.
func (s Sentinels) IsNull(v string) bool { return v == "" || s.Has(v) }
