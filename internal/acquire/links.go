package acquire

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

const (
	// DefaultListingURL is the BindingDB download page.
	DefaultListingURL = "https://www.bindingdb.org/rwd/bind/chemsearch/marvin/Download.jsp"
	// DefaultBaseURL resolves relative archive links.
	DefaultBaseURL = "https://www.bindingdb.org"
)

// archiveMarker identifies tab-separated archive links on the listing page.
const archiveMarker = "tsv.zip"

// excludedSubsets are partial dumps that are never preferred over the full
// "All" archive.
var excludedSubsets = []string{"Articles", "ChEMBL", "Patents"}

// FindCandidates returns every archive link on the listing page, in document
// order. Links that carry a download_file query parameter contribute the
// parameter value instead of the raw href.
func FindCandidates(r io.Reader) ([]string, error) {
	z := html.NewTokenizer(r)
	var out []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return out, fmt.Errorf("parse listing: %w", err)
			}
			return out, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "href" {
					if c, ok := candidate(string(val)); ok {
						out = append(out, c)
					}
				}
				if !more {
					break
				}
			}
		}
	}
}

func candidate(href string) (string, bool) {
	if !strings.Contains(href, archiveMarker) {
		return "", false
	}
	u, err := url.Parse(href)
	if err != nil {
		return href, true
	}
	if p := u.Query().Get("download_file"); p != "" {
		return p, true
	}
	return href, true
}

// SelectArchive picks the full-dataset archive: the first candidate naming
// BindingDB_All that is not a subset dump. When none matches it falls back to
// the first candidate and reports preferred=false so callers can warn.
func SelectArchive(cands []string) (link string, preferred bool, err error) {
	for _, c := range cands {
		if isFullArchive(c) {
			return c, true, nil
		}
	}
	if len(cands) == 0 {
		return "", false, ErrNoCandidate
	}
	return cands[0], false, nil
}

func isFullArchive(c string) bool {
	if !strings.Contains(c, "BindingDB_All") || !strings.Contains(c, archiveMarker) {
		return false
	}
	for _, s := range excludedSubsets {
		if strings.Contains(c, s) {
			return false
		}
	}
	return true
}

// ResolveURL makes link absolute against base when it has no http(s) scheme.
func ResolveURL(base, link string) (string, error) {
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link, nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("base url %q: %w", base, err)
	}
	ref, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("archive link %q: %w", link, err)
	}
	return b.ResolveReference(ref).String(), nil
}
