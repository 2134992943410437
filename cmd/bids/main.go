// Command bids runs the cash-bid pipeline once and writes CSV and Excel
// exports. It exits non-zero only when no data was available at all or an
// export failed; individual source failures degrade to partial output.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grainbids/internal/config"
	apperrors "grainbids/internal/errors"
	"grainbids/internal/exporter"
	"grainbids/internal/fetch"
	"grainbids/internal/infrastructure"
	"grainbids/internal/services"
)

func main() {
	configFile := flag.String("config", "", "config file path (default config.yaml or GRAINBIDS_CONFIG)")
	outDir := flag.String("out", "", "output directory (overrides config)")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall run timeout")
	flag.Parse()

	if err := run(*configFile, *outDir, *timeout); err != nil {
		if errors.Is(err, apperrors.ErrNoData) {
			fmt.Fprintln(os.Stderr, "no bids available: every source and the fallback feed came back empty")
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, outDir string, timeout time.Duration) error {
	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = config.LoadFrom(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if outDir != "" {
		cfg.Output.Dir = outDir
	}

	logger := infrastructure.InitializeLogger(cfg.Logging)

	sources, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		return fmt.Errorf("failed to load sources: %w", err)
	}

	client := fetch.NewClient(cfg.Fetch)
	var browser services.RenderedFetcher
	if cfg.Fetch.EnableBrowser {
		browser = fetch.NewBrowserFetcher(cfg.Fetch.BrowserTimeout)
	}

	service, err := services.NewBidService(
		cfg.Pipeline, sources, client, browser, nil, nil, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	table, err := service.Refresh(ctx)
	if err != nil {
		return err
	}

	csvPath, err := exporter.NewCSVWriter(cfg.Output.Dir).WriteTable(table, cfg.Output.CSVName)
	if err != nil {
		return fmt.Errorf("csv export: %w", err)
	}
	excelPath, err := exporter.NewExcelWriter(cfg.Output.Dir).WriteTable(table, cfg.Output.ExcelName)
	if err != nil {
		return fmt.Errorf("excel export: %w", err)
	}

	logger.Info("run complete",
		slog.Int("rows", len(table.Rows)),
		slog.String("csv", csvPath),
		slog.String("xlsx", excelPath))
	return nil
}
