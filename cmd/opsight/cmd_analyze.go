package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/lmoreira/opsight/internal/analysis"
	"github.com/lmoreira/opsight/internal/config"
	"github.com/lmoreira/opsight/internal/report"
)

// runAnalyze performs a one-shot scoring run against an export log and
// writes the CSV report plus a summary, without starting the server.
func runAnalyze(args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	inputPath := fs.String("input", "", "path to export log (overrides input.path)")
	outputDir := fs.String("output-dir", "", "report output directory (overrides report.output_dir)")
	_ = fs.Parse(args)

	v, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	input := v.GetString("input.path")
	if *inputPath != "" {
		input = *inputPath
	}
	outDir := v.GetString("report.output_dir")
	if *outputDir != "" {
		outDir = *outputDir
	}

	cfg := analysis.ConfigFromViper(v)
	source := analysis.FileSource(input)
	pipeline := analysis.NewPipeline(source, nil, nil, logger.Named("analysis"), cfg)

	run, err := pipeline.Run(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "analysis failed: %v\n", err)
		os.Exit(1)
	}

	path, err := report.WriteCSVFile(outDir, "score_anomalies.csv", run.Table)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
		os.Exit(1)
	}
	logger.Info("report written", zap.String("path", path))

	if err := report.WriteSummary(os.Stdout, run); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write summary: %v\n", err)
		os.Exit(1)
	}
}
