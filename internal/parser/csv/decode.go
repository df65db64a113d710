package csv

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"bindingetl/internal/datasource"
)

// Encoding names the text encoding used to decode a source file.
type Encoding string

const (
	// EncodingAuto scans the whole file once and picks UTF-8 when every byte
	// sequence is valid, Latin-1 otherwise.
	EncodingAuto   Encoding = "auto"
	EncodingUTF8   Encoding = "utf-8"
	EncodingLatin1 Encoding = "latin-1"
)

// ParseEncoding accepts the usual spellings of the supported encodings.
// An empty string means auto.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return EncodingAuto, nil
	case "utf-8", "utf8":
		return EncodingUTF8, nil
	case "latin-1", "latin1", "iso-8859-1", "iso8859-1":
		return EncodingLatin1, nil
	default:
		return "", fmt.Errorf("unsupported encoding %q (want auto, utf-8 or latin-1)", s)
	}
}

const scanBlock = 256 << 10

// DetectEncoding reads r to EOF and returns EncodingUTF8 if the whole stream
// is valid UTF-8, EncodingLatin1 otherwise. It stops at the first invalid
// sequence. Memory use is bounded by one block.
func DetectEncoding(r io.Reader) (Encoding, error) {
	buf := make([]byte, scanBlock+utf8.UTFMax)
	carry := 0
	for {
		n, err := r.Read(buf[carry : carry+scanBlock])
		data := buf[:carry+n]
		eof := err == io.EOF

		end := len(data)
		if !eof {
			end = completeRunes(data)
		}
		if !utf8.Valid(data[:end]) {
			return EncodingLatin1, nil
		}
		carry = copy(buf, data[end:])

		if eof {
			return EncodingUTF8, nil
		}
		if err != nil {
			return "", err
		}
	}
}

// completeRunes returns the length of the longest prefix of b that does not
// end in the middle of a multi-byte sequence.
func completeRunes(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return len(b)
		}
		return i
	}
	return len(b)
}

// resolveEncoding turns EncodingAuto into a concrete choice by scanning the
// source once. Explicit encodings are returned unchanged.
func resolveEncoding(ctx context.Context, src datasource.Source, enc Encoding) (Encoding, error) {
	if enc != EncodingAuto {
		return enc, nil
	}
	rc, err := src.Open(ctx)
	if err != nil {
		return "", fmt.Errorf("open for encoding scan: %w", err)
	}
	defer rc.Close()

	got, err := DetectEncoding(rc)
	if err != nil {
		return "", fmt.Errorf("encoding scan: %w", err)
	}
	return got, nil
}

// decodeReader wraps r so that reads yield UTF-8.
func decodeReader(r io.Reader, enc Encoding) io.Reader {
	if enc == EncodingLatin1 {
		return charmap.ISO8859_1.NewDecoder().Reader(r)
	}
	return r
}
