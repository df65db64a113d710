package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"bindingetl/internal/acquire"
	"bindingetl/internal/config"
	"bindingetl/internal/metrics"
	"bindingetl/internal/record"
	"bindingetl/internal/storage"
	"bindingetl/internal/storage/parquet"
)

// buildFlags override pipeline file values, but only when set explicitly.
type buildFlags struct {
	config        string
	input         string
	output        string
	storage       string
	dsn           string
	table         string
	encoding      string
	compression   string
	chunkSize     int
	progressEvery int
}

func (f *buildFlags) register(cmd *cobra.Command, withInput bool) {
	fl := cmd.Flags()
	fl.StringVar(&f.config, "config", "", "pipeline file (.json or .toml); defaults apply when empty")
	if withInput {
		fl.StringVar(&f.input, "input", "", "extracted TSV table to convert")
	}
	fl.StringVar(&f.output, "output", "", "output file for file-backed sinks (default brick/data.parquet)")
	fl.StringVar(&f.storage, "storage", "", "sink kind: parquet, sqlite, postgres")
	fl.StringVar(&f.dsn, "dsn", "", "database DSN for sqlite/postgres")
	fl.StringVar(&f.table, "table", "", "destination table for sqlite/postgres")
	fl.StringVar(&f.encoding, "encoding", "", "source encoding: auto, utf-8, latin-1")
	fl.StringVar(&f.compression, "compression", "", "parquet codec: snappy, zstd, gzip, none")
	fl.IntVar(&f.chunkSize, "chunk-size", 0, "rows per chunk (overrides env BINDINGETL_CHUNK_SIZE)")
	fl.IntVar(&f.progressEvery, "progress-every", 0, "progress line interval in rows (overrides env BINDINGETL_PROGRESS_EVERY)")
}

// apply copies every explicitly set flag onto p.
func (f *buildFlags) apply(cmd *cobra.Command, p *config.Pipeline) {
	set := cmd.Flags().Changed
	if set("input") {
		p.Source = config.Source{Kind: "file", File: config.SourceFile{Path: f.input}}
	}
	if set("output") {
		p.Storage.Path = f.output
	}
	if set("storage") {
		p.Storage.Kind = f.storage
	}
	if set("dsn") {
		p.Storage.DSN = f.dsn
	}
	if set("table") {
		p.Storage.Table = f.table
	}
	if set("compression") {
		p.Storage.Compression = f.compression
	}
	if set("encoding") {
		p.Parser.Options = p.Parser.Options.Set("encoding", f.encoding)
	}
	if set("chunk-size") {
		p.Runtime.ChunkSize = f.chunkSize
	}
	if set("progress-every") {
		p.Runtime.ProgressEvery = f.progressEvery
	}
}

// fetchFlags override the acquire options block.
type fetchFlags struct {
	listingURL string
	workdir    string
	workers    int
}

func (f *fetchFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.listingURL, "listing-url", "", "download page to scan for the archive link")
	fl.StringVar(&f.workdir, "workdir", "", "download directory (default download)")
	fl.IntVar(&f.workers, "workers", 0, "concurrent extraction workers")
}

func (f *fetchFlags) apply(cmd *cobra.Command, p *config.Pipeline) {
	set := cmd.Flags().Changed
	if set("listing-url") {
		p.Acquire = p.Acquire.Set("listing_url", f.listingURL)
	}
	if set("workdir") {
		p.Acquire = p.Acquire.Set("workdir", f.workdir)
	}
	if set("workers") {
		p.Acquire = p.Acquire.Set("workers", f.workers)
	}
}

func newBuildCommand(g *globalFlags) *cobra.Command {
	var bf buildFlags
	cmd := &cobra.Command{
		Use:   "build",
		Short: "convert an extracted TSV table into the canonical artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPipeline(bf.config)
			if err != nil {
				return err
			}
			bf.apply(cmd, &p)
			if err := checkPipeline(cmd.ErrOrStderr(), p); err != nil {
				return err
			}
			flush := setupMetrics(g, p.Metrics, p.Job)
			defer flush()
			return build(cmd.Context(), g, p, cmd.OutOrStdout())
		},
	}
	bf.register(cmd, true)
	return cmd
}

func newFetchCommand(g *globalFlags) *cobra.Command {
	var (
		cfgPath string
		ff      fetchFlags
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "download and extract the BindingDB archive, then print the table path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPipeline(cfgPath)
			if err != nil {
				return err
			}
			ff.apply(cmd, &p)
			flush := setupMetrics(g, p.Metrics, p.Job)
			defer flush()

			res, err := fetch(cmd.Context(), p)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.TablePath)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "pipeline file (.json or .toml)")
	ff.register(cmd)
	return cmd
}

func newRunCommand(g *globalFlags) *cobra.Command {
	var (
		bf buildFlags
		ff fetchFlags
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "fetch the archive, then build the artifact from its table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPipeline(bf.config)
			if err != nil {
				return err
			}
			bf.apply(cmd, &p)
			ff.apply(cmd, &p)

			// The table path is only known after extraction.
			p.Source = config.Source{Kind: "file", File: config.SourceFile{
				Path: acquire.New(acquire.ConfigFrom(p.Acquire)).ExtractDir(),
			}}
			if err := checkPipeline(cmd.ErrOrStderr(), p); err != nil {
				return err
			}
			flush := setupMetrics(g, p.Metrics, p.Job)
			defer flush()

			res, err := fetch(cmd.Context(), p)
			if err != nil {
				return err
			}
			p.Source.File.Path = res.TablePath
			return build(cmd.Context(), g, p, cmd.OutOrStdout())
		},
	}
	bf.register(cmd, false)
	ff.register(cmd)
	return cmd
}

func newValidateCommand() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "check a pipeline file and print every issue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if err := checkPipeline(cmd.OutOrStdout(), p); err != nil {
				return fmt.Errorf("%s: %w", cfgPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid: %s\n", cfgPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "pipeline file (.json or .toml)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func newInspectCommand() *cobra.Command {
	var head int
	cmd := &cobra.Command{
		Use:   "inspect PATH",
		Short: "print the footer summary of a Parquet artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspect(cmd.Context(), cmd.OutOrStdout(), args[0], head)
		},
	}
	cmd.Flags().IntVar(&head, "head", 0, "also print the first N records")
	return cmd
}

// fetch runs the acquire stage and records its step metric.
func fetch(ctx context.Context, p config.Pipeline) (acquire.Result, error) {
	start := time.Now()
	res, err := acquire.New(acquire.ConfigFrom(p.Acquire)).Run(ctx)
	metrics.RecordStep(p.Job, "fetch", err, time.Since(start))
	return res, err
}

// build resolves p and streams it into the sink.
func build(ctx context.Context, g *globalFlags, p config.Pipeline, stdout io.Writer) error {
	plan, err := planFromPipeline(p)
	if err != nil {
		return err
	}
	if g.verbose {
		log.Printf("pipeline: job=%s source=%s parser=%s storage=%s path=%s table=%s",
			p.Job, plan.srcName, p.Parser.Kind, p.Storage.Kind, p.Storage.Path, p.Storage.Table)
	}

	start := time.Now()
	sum, err := runBuild(ctx, plan, stdout)
	logSummary(sum)
	if err != nil {
		return err
	}
	if g.verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
	return nil
}

// inspect prints the footer of the Parquet file at path and, when head > 0,
// its first records.
func inspect(ctx context.Context, w io.Writer, path string, head int) error {
	info, err := parquet.Stat(path, storage.MetaKeys()...)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "path:       %s\n", path)
	fmt.Fprintf(w, "rows:       %d\n", info.Rows)
	fmt.Fprintf(w, "row_groups: %d\n", info.RowGroups)
	fmt.Fprintf(w, "created_by: %s\n", info.CreatedBy)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "column\tphysical\trequired")
	for _, c := range info.Columns {
		fmt.Fprintf(tw, "%s\t%s\t%v\n", c.Name, c.Physical, c.Required)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, k := range storage.MetaKeys() {
		if v, ok := info.Metadata[k]; ok {
			fmt.Fprintf(w, "%s=%s\n", k, v)
		}
	}

	if head <= 0 {
		return nil
	}
	recs, err := parquet.Read(ctx, path, head)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, strings.Join(record.Columns(), "\t"))
	for i := range recs {
		vals := recs[i].Values()
		cells := make([]string, len(vals))
		for j, v := range vals {
			if v == nil {
				cells[j] = "NULL"
				continue
			}
			cells[j] = fmt.Sprint(v)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	return nil
}
