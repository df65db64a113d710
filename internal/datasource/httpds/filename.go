package httpds

import (
	"net/url"
	"path"
	"regexp"
	"strconv"

	"github.com/zeebo/xxh3"
)

// filenameCleaner replaces sequences of unsafe characters with "_".
var filenameCleaner = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// HashString returns a stable hex digest of s.
func HashString(s string) string {
	return strconv.FormatUint(xxh3.HashString(s), 16)
}

// FilenameFromURL derives a filesystem-safe filename from a URL. It prefers,
// in order: the base name of a "download_file" query parameter, the last path
// segment when it has an extension, the cleaned raw query, and finally a hash
// of the whole URL.
func FilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return HashString(rawURL)
	}
	if df := u.Query().Get("download_file"); df != "" {
		if name := clean(path.Base(df)); name != "" {
			return name
		}
	}
	if base := path.Base(u.Path); path.Ext(base) != "" {
		if name := clean(base); name != "" {
			return name
		}
	}
	if q := clean(u.RawQuery); q != "" {
		return q
	}
	return HashString(rawURL)
}

func clean(s string) string {
	s = filenameCleaner.ReplaceAllString(s, "_")
	if s == "." || s == ".." || s == "_" {
		return ""
	}
	return s
}
