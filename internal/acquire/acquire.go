// Package acquire fetches the BindingDB archive. It reads the download page,
// picks the full tab-separated archive link, downloads it with retries and
// extracts it, returning the path of the table the pipeline should ingest.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"bindingetl/internal/config"
	"bindingetl/internal/datasource/httpds"
)

var (
	ErrNoCandidate   = errors.New("acquire: no archive link found on listing page")
	ErrUnsafePath    = errors.New("acquire: archive entry escapes extraction directory")
	ErrEntryTooLarge = errors.New("acquire: archive entry larger than declared size")
	ErrEmptyArchive  = errors.New("acquire: archive contains no files")
)

// Config controls one acquisition. Zero values take the defaults.
type Config struct {
	ListingURL string // download page, default DefaultListingURL
	BaseURL    string // base for relative links, default DefaultBaseURL
	WorkDir    string // default "download"; archive goes to WorkDir/data.zip
	Workers    int    // extraction concurrency, default DefaultExtractWorkers
	Client     *httpds.Client
}

// ConfigFrom reads the acquire options block: listing_url, base_url, workdir,
// workers, max_retries.
func ConfigFrom(opt config.Options) Config {
	return Config{
		ListingURL: opt.String("listing_url", DefaultListingURL),
		BaseURL:    opt.String("base_url", DefaultBaseURL),
		WorkDir:    opt.String("workdir", "download"),
		Workers:    opt.Int("workers", DefaultExtractWorkers),
		Client:     httpds.NewClient(httpds.Config{MaxRetries: opt.Int("max_retries", 3)}),
	}
}

// Result reports what was fetched.
type Result struct {
	ArchiveURL  string
	ArchiveName string // upstream file name, e.g. BindingDB_All_202410_tsv.zip
	ArchivePath string
	Bytes       int64
	Files       []Extracted
	TablePath   string
}

// Acquirer runs the fetch stage.
type Acquirer struct {
	cfg Config
}

// New applies defaults to cfg.
func New(cfg Config) *Acquirer {
	if cfg.ListingURL == "" {
		cfg.ListingURL = DefaultListingURL
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = "download"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultExtractWorkers
	}
	if cfg.Client == nil {
		cfg.Client = httpds.NewClient(httpds.Config{MaxRetries: 3})
	}
	return &Acquirer{cfg: cfg}
}

// ArchivePath is where the downloaded archive is stored.
func (a *Acquirer) ArchivePath() string { return filepath.Join(a.cfg.WorkDir, "data.zip") }

// ExtractDir is where the archive is unpacked.
func (a *Acquirer) ExtractDir() string { return filepath.Join(a.cfg.WorkDir, "extracted") }

// ResolveLink fetches the listing page and returns the absolute archive URL.
func (a *Acquirer) ResolveLink(ctx context.Context) (string, error) {
	log.Printf("acquire: fetching listing url=%s", a.cfg.ListingURL)
	resp, err := a.cfg.Client.Get(ctx, a.cfg.ListingURL, http.Header{"Accept": {"text/html"}})
	if err != nil {
		return "", fmt.Errorf("acquire: listing: %w", err)
	}
	defer resp.Body.Close()

	cands, err := FindCandidates(resp.Body)
	if err != nil {
		return "", fmt.Errorf("acquire: %w", err)
	}
	log.Printf("acquire: candidates=%d %v", len(cands), cands)

	link, preferred, err := SelectArchive(cands)
	if err != nil {
		return "", err
	}
	if !preferred {
		log.Printf("acquire: WARN no full-dataset archive among candidates; using first link=%s", link)
	}
	return ResolveURL(a.cfg.BaseURL, link)
}

// Run resolves, downloads and extracts the archive.
func (a *Acquirer) Run(ctx context.Context) (Result, error) {
	var res Result
	link, err := a.ResolveLink(ctx)
	if err != nil {
		return res, err
	}
	res.ArchiveURL = link
	res.ArchiveName = httpds.FilenameFromURL(link)
	res.ArchivePath = a.ArchivePath()

	start := time.Now()
	log.Printf("acquire: downloading archive=%s url=%s dst=%s", res.ArchiveName, link, res.ArchivePath)
	n, err := a.cfg.Client.Download(ctx, link, res.ArchivePath)
	if err != nil {
		return res, fmt.Errorf("acquire: %w", err)
	}
	res.Bytes = n
	log.Printf("acquire: download complete bytes=%d elapsed=%s", n, time.Since(start).Truncate(time.Millisecond))

	files, err := Extract(ctx, res.ArchivePath, a.ExtractDir(), a.cfg.Workers)
	if err != nil {
		return res, fmt.Errorf("acquire: %w", err)
	}
	res.Files = files
	res.TablePath, err = PickTable(files)
	if err != nil {
		return res, err
	}
	log.Printf("acquire: extracted files=%d table=%s", len(files), res.TablePath)
	return res, nil
}
