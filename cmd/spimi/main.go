package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/metrics"
)

const usage = `usage: spimi <command> [flags] <arg>

commands:
  index  [flags] <file>      build an index from a tab-delimited document file
  search [flags] <indexDir>  query an index interactively or from a file
  serve  [flags] <indexDir>  serve an index over HTTP
  config [-o file]           write the default configuration as YAML
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(apperrors.ExitConfig)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "index":
		err = runIndex(ctx, os.Args[2:])
	case "search":
		err = runSearch(ctx, os.Args[2:])
	case "serve":
		err = runServe(ctx, os.Args[2:])
	case "config":
		err = runConfig(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		err = apperrors.Newf(apperrors.ErrConfig, "unknown command %q", os.Args[1])
	}
	if err != nil {
		slog.Error("command failed", "command", os.Args[1], "error", err)
		stop()
		os.Exit(apperrors.ExitCode(err))
	}
}

// loadConfig reads the config file, then lets apply override values from
// flags the user actually set.
func loadConfig(fs *flag.FlagSet, path string, apply func(cfg *config.Config, set map[string]bool)) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	apply(cfg, set)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

// startMetrics serves the collectors while the command runs when enabled.
func startMetrics(cfg *config.Config) (*metrics.Metrics, func()) {
	m := metrics.New(prometheus.NewRegistry())
	if !cfg.Metrics.Enabled {
		return m, func() {}
	}
	shutdown := metrics.StartServer(cfg.Metrics.Port, m)
	return m, func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Error("metrics server shutdown", "error", err)
		}
	}
}

func runConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	out := fs.String("o", "", "write to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return apperrors.Newf(apperrors.ErrConfig, "%v", err)
	}
	if *out != "" {
		return config.Write(*out, config.Default())
	}
	return config.Encode(os.Stdout, config.Default())
}
