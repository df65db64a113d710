package csv

import (
	"strings"

	"github.com/zeebo/xxh3"
	"golang.org/x/text/unicode/norm"
)

const utf8BOM = "\uFEFF"

// NormalizeHeader returns cleaned column names: BOM stripped from the first
// cell, edge whitespace trimmed, and NFC applied so that visually identical
// labels from different dataset revisions compare equal. Case is preserved.
func NormalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		out[i] = norm.NFC.String(strings.TrimSpace(h))
	}
	return out
}

// HeaderFingerprint hashes a normalized header. Two sources with the same
// column labels in the same order share a fingerprint.
func HeaderFingerprint(header []string) uint64 {
	return xxh3.HashString(strings.Join(header, "\t"))
}

func hasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	return isSpace(s[0]) || isSpace(s[len(s)-1])
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return b >= 0x80 // let strings.TrimSpace decide on non-ASCII edges
}
