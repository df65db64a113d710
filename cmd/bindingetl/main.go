// Command bindingetl fetches the BindingDB bulk export and converts its main
// TSV table into a canonical 16-column Parquet (or SQL) artifact.
//
//	bindingetl fetch                      # download + extract, print table path
//	bindingetl build --input t.tsv        # TSV -> brick/data.parquet
//	bindingetl run                        # fetch, then build
//	bindingetl validate --config p.toml   # check a pipeline file
//	bindingetl inspect brick/data.parquet # footer summary
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"bindingetl/internal/config"
	"bindingetl/internal/metrics"
	"bindingetl/internal/metrics/datadog"
	"bindingetl/internal/metrics/prompush"

	// register all backends with the storage factory.
	_ "bindingetl/internal/storage/all"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	metricsBackend string
	pushgatewayURL string
	datadogAddr    string
	verbose        bool
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("env: load .env: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		fatalf("%v", err)
	}
}

// newRootCommand builds the command tree. stdout carries progress and command
// output; stderr carries cobra's usage and error text.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "bindingetl",
		Short: "bindingetl - BindingDB TSV to canonical Parquet",
		Long: `Downloads the BindingDB bulk export, extracts its main table and
streams it, chunk by chunk, into a fixed 16-column artifact.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.verbose {
				log.SetFlags(log.LstdFlags | log.Lmicroseconds)
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&g.metricsBackend, "metrics-backend", "", "metrics backend: none, pushgateway, datadog (overrides env METRICS_BACKEND)")
	pf.StringVar(&g.pushgatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	pf.StringVar(&g.datadogAddr, "datadog-addr", "", "DogStatsD address (overrides env DD_DOGSTATSD_ADDR)")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "enable verbose logs")

	root.AddCommand(
		newBuildCommand(g),
		newFetchCommand(g),
		newRunCommand(g),
		newValidateCommand(),
		newInspectCommand(),
	)
	return root
}

// setupMetrics installs the selected backend and returns the function that
// flushes it. Backend choice: flag → env → config → none.
func setupMetrics(g *globalFlags, m config.Metrics, job string) func() {
	backendName := firstNonEmpty(g.metricsBackend, os.Getenv("METRICS_BACKEND"), m.Backend)

	var (
		b   metrics.Backend
		err error
	)
	switch backendName {
	case "pushgateway":
		gwURL := firstNonEmpty(g.pushgatewayURL, os.Getenv("PUSHGATEWAY_URL"), m.PushgatewayURL, "http://localhost:9091")
		b, err = prompush.NewBackend(job, gwURL)
		if err == nil {
			log.Printf("metrics: url=%v, backend=%v, job_name=%v", gwURL, backendName, job)
		}
	case "datadog":
		addr := firstNonEmpty(g.datadogAddr, os.Getenv("DD_DOGSTATSD_ADDR"), m.DatadogAddr, "127.0.0.1:8125")
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       addr,
			GlobalTags: []string{"job:" + job},
		})
		if err == nil {
			log.Printf("metrics: addr=%v, backend=%v, job_name=%v", addr, backendName, job)
		}
	case "", "none":
		if g.verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}
		return func() {}
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
		return func() {}
	}
	if err != nil {
		log.Printf("metrics: failed to init %s backend: %v; using nop", backendName, err)
		return func() {}
	}

	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}

// loadPipeline reads path, or returns the defaults when path is empty.
func loadPipeline(path string) (config.Pipeline, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// checkPipeline prints every issue to w and fails on errors.
func checkPipeline(w io.Writer, p config.Pipeline) error {
	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return errors.New("configuration is invalid")
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
