package acquire

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bindingetl/internal/config"
	"bindingetl/internal/datasource/httpds"
)

func TestAcquirer_Run(t *testing.T) {
	zp := writeZip(t, [][2]string{
		{"BindingDB_All.tsv", "Ligand SMILES\tKi (nM)\nCCO\t5\n"},
	})
	archive, err := os.ReadFile(zp)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/Download.jsp", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<a href="/dl.jsp?download_file=/downloads/BindingDB_Articles_1_tsv.zip">a</a>
<a href="/dl.jsp?download_file=/downloads/BindingDB_All_1_tsv.zip">b</a>
</body></html>`)
	})
	var archiveHits int
	mux.HandleFunc("/downloads/BindingDB_All_1_tsv.zip", func(w http.ResponseWriter, r *http.Request) {
		archiveHits++
		_, _ = w.Write(archive)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	work := t.TempDir()
	a := New(Config{
		ListingURL: srv.URL + "/Download.jsp",
		BaseURL:    srv.URL,
		WorkDir:    work,
		Client:     httpds.NewClient(httpds.Config{}),
	})
	res, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/downloads/BindingDB_All_1_tsv.zip", res.ArchiveURL)
	assert.Equal(t, "BindingDB_All_1_tsv.zip", res.ArchiveName)
	assert.Equal(t, filepath.Join(work, "data.zip"), res.ArchivePath)
	assert.EqualValues(t, len(archive), res.Bytes)
	assert.Equal(t, filepath.Join(work, "extracted", "BindingDB_All.tsv"), res.TablePath)
	assert.Equal(t, 1, archiveHits)
	assert.FileExists(t, res.TablePath)
}

func TestAcquirer_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/about">about</a></body></html>`)
	}))
	defer srv.Close()

	a := New(Config{ListingURL: srv.URL, BaseURL: srv.URL, WorkDir: t.TempDir()})
	_, err := a.Run(context.Background())
	require.ErrorIs(t, err, ErrNoCandidate)
}

func TestAcquirer_ListingStatusError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	a := New(Config{ListingURL: srv.URL, WorkDir: t.TempDir()})
	_, err := a.ResolveLink(context.Background())
	var se *httpds.StatusError
	require.ErrorAs(t, err, &se)
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.Options{
		"listing_url": "http://localhost/page",
		"workdir":     "/tmp/dl",
		"workers":     float64(8),
	})
	assert.Equal(t, "http://localhost/page", cfg.ListingURL)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, "/tmp/dl", cfg.WorkDir)
	assert.Equal(t, 8, cfg.Workers)
	assert.NotNil(t, cfg.Client)

	a := New(Config{})
	assert.Equal(t, filepath.Join("download", "data.zip"), a.ArchivePath())
	assert.Equal(t, filepath.Join("download", "extracted"), a.ExtractDir())
}
