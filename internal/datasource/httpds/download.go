package httpds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// Source adapts a URL to datasource.Source. Each Open issues a fresh GET.
type Source struct {
	Client *Client
	URL    string
}

// Open implements datasource.Source.
func (s Source) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s.Client.Get(ctx, s.URL, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Download streams url into dst. The body goes to a temporary file in the
// same directory that is renamed into place only after a complete copy, so
// dst never holds a truncated archive. It returns the bytes written.
func (c *Client) Download(ctx context.Context, url, dst string) (int64, error) {
	resp, err := c.Get(ctx, url, http.Header{"Accept": {"application/zip, application/octet-stream, */*"}})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("httpds: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".part-*")
	if err != nil {
		return 0, fmt.Errorf("httpds: temp file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		return n, fmt.Errorf("httpds: download %s: %w", url, err)
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return n, fmt.Errorf("httpds: download %s: short body %d of %d bytes", url, n, resp.ContentLength)
	}
	if err := tmp.Sync(); err != nil {
		return n, fmt.Errorf("httpds: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("httpds: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return n, fmt.Errorf("httpds: rename: %w", err)
	}
	committed = true
	return n, nil
}
