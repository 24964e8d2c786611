// Command etl runs the wildfire hex pipeline stages against the datalake.
//
// Usage:
//
//	etl [-start-year N] [-end-year N] [-year N] <init|download|clean|hexes|export|publish|all>
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	kafkaadapter "github.com/couchcryptid/wildfire-hex-etl/internal/adapter/kafka"
	"github.com/couchcryptid/wildfire-hex-etl/internal/adapter/noaa"
	"github.com/couchcryptid/wildfire-hex-etl/internal/adapter/shapefile"
	"github.com/couchcryptid/wildfire-hex-etl/internal/config"
	"github.com/couchcryptid/wildfire-hex-etl/internal/hexgrid"
	"github.com/couchcryptid/wildfire-hex-etl/internal/lake"
	"github.com/couchcryptid/wildfire-hex-etl/internal/observability"
	"github.com/couchcryptid/wildfire-hex-etl/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		slog.Error("etl failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	startYear := flag.Int("start-year", 0, "first year to process (overrides START_YEAR)")
	endYear := flag.Int("end-year", 0, "last year to process (overrides END_YEAR)")
	year := flag.Int("year", 0, "single year to process (sets both start and end year)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: etl [flags] <%s>\n", strings.Join(pipeline.Stages, "|"))
		flag.PrintDefaults()
	}
	flag.Parse()

	stage := pipeline.StageAll
	if flag.NArg() > 1 {
		flag.Usage()
		return fmt.Errorf("expected one stage, got %d arguments", flag.NArg())
	}
	if flag.NArg() == 1 {
		stage = flag.Arg(0)
	}

	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *year != 0 {
		cfg.StartYear, cfg.EndYear = *year, *year
	}
	if *startYear != 0 {
		cfg.StartYear = *startYear
	}
	if *endYear != 0 {
		cfg.EndYear = *endYear
	}
	if cfg.StartYear > cfg.EndYear {
		return fmt.Errorf("start year %d is after end year %d", cfg.StartYear, cfg.EndYear)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	grid, err := buildGrid(cfg, logger)
	if err != nil {
		return err
	}

	client := noaa.NewClient(cfg.GHCNDBaseURL, cfg.GHCNDReadmeURL, cfg.StreamThresholdBytes, cfg.DownloadTimeout, metrics, logger)

	var publisher pipeline.Publisher
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		publisher = writer
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("kafka publishing disabled")
	}

	p := pipeline.New(opts, lake.New(cfg.DatalakeRoot), client, grid, publisher, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return p.Run(ctx, stage)
}

// buildGrid creates the hex disk and tags cells with state names when a state
// shapefile is configured.
func buildGrid(cfg *config.Config, logger *slog.Logger) (*hexgrid.Grid, error) {
	grid, err := hexgrid.New(hexgrid.Center{Lat: cfg.HexCenterLat, Lon: cfg.HexCenterLon}, cfg.HexResolution, cfg.HexRingSize)
	if err != nil {
		return nil, fmt.Errorf("build hex grid: %w", err)
	}
	logger.Info("hex grid built", "cells", grid.Len(), "resolution", cfg.HexResolution, "ring_size", cfg.HexRingSize)

	if cfg.StatesShapefile == "" {
		return grid, nil
	}
	states, err := shapefile.ReadStates(cfg.StatesShapefile, shapefile.DefaultNameColumn)
	if err != nil {
		return nil, err
	}
	tagged := grid.TagStates(states)
	logger.Info("hex cells tagged with states", "states", len(states), "tagged", tagged)
	return grid, nil
}
