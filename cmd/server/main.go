// Command server serves hex layer overlays, legends and hex details from the
// curated tables of the datalake.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/wildfire-hex-etl/internal/adapter/http"
	"github.com/couchcryptid/wildfire-hex-etl/internal/adapter/shapefile"
	"github.com/couchcryptid/wildfire-hex-etl/internal/config"
	"github.com/couchcryptid/wildfire-hex-etl/internal/fields"
	"github.com/couchcryptid/wildfire-hex-etl/internal/hexgrid"
	"github.com/couchcryptid/wildfire-hex-etl/internal/lake"
	"github.com/couchcryptid/wildfire-hex-etl/internal/layer"
	"github.com/couchcryptid/wildfire-hex-etl/internal/observability"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	catalog, err := fields.LoadCatalog(cfg.FieldsFile, fields.Policy(cfg.NormalizationPolicy), logger)
	if err != nil {
		logger.Error("failed to load field catalog", "error", err)
		os.Exit(1)
	}
	grid, err := buildGrid(cfg, logger)
	if err != nil {
		logger.Error("failed to build hex grid", "error", err)
		os.Exit(1)
	}

	source := layer.LakeSource{Lake: lake.New(cfg.DatalakeRoot)}
	svc := layer.NewService(source, grid, catalog, cfg.LayerCacheSize, metrics, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, svc, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr, "lake", cfg.DatalakeRoot)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}

// buildGrid creates the hex disk used to draw cell boundaries and tags cells
// with state names when a state shapefile is configured.
func buildGrid(cfg *config.Config, logger *slog.Logger) (*hexgrid.Grid, error) {
	grid, err := hexgrid.New(hexgrid.Center{Lat: cfg.HexCenterLat, Lon: cfg.HexCenterLon}, cfg.HexResolution, cfg.HexRingSize)
	if err != nil {
		return nil, fmt.Errorf("build hex grid: %w", err)
	}
	if cfg.StatesShapefile != "" {
		states, err := shapefile.ReadStates(cfg.StatesShapefile, shapefile.DefaultNameColumn)
		if err != nil {
			return nil, err
		}
		grid.TagStates(states)
	}
	logger.Info("hex grid built", "cells", grid.Len(), "resolution", cfg.HexResolution)
	return grid, nil
}
