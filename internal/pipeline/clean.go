package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/couchcryptid/wildfire-hex-etl/internal/adapter/geojson"
	"github.com/couchcryptid/wildfire-hex-etl/internal/adapter/parquet"
	"github.com/couchcryptid/wildfire-hex-etl/internal/domain"
	"github.com/couchcryptid/wildfire-hex-etl/internal/ghcnd"
	"github.com/couchcryptid/wildfire-hex-etl/internal/hexgrid"
)

// Dataset labels for the rows_parsed metric.
const (
	datasetStations    = "stations"
	datasetDaily       = "daily"
	datasetFirePoints  = "fire_points"
	datasetPerimeters  = "fire_perimeters"
	datasetPredictions = "predictions"
)

// Drop reasons recorded by the pipeline itself.
const (
	dropNoStation   = "no_station"
	dropOutsideGrid = "outside_grid"
	dropGeometry    = "bad_geometry"
)

// clean turns the raw zone into typed Parquet tables: stations, one wide
// station-day table per year, and the fire layers when they are present.
func (p *Pipeline) clean(ctx context.Context) error {
	stations, err := p.cleanStations()
	if err != nil {
		return err
	}
	index := ghcnd.Index(stations)

	for _, year := range p.opts.Years() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.cleanDaily(year, index); err != nil {
			return err
		}
	}

	if err := p.cleanFirePoints(); err != nil {
		return err
	}
	return p.cleanPerimeters()
}

func (p *Pipeline) cleanStations() ([]domain.Station, error) {
	f, err := os.Open(p.lake.RawStations())
	if err != nil {
		return nil, fmt.Errorf("open stations: %w", err)
	}
	defer f.Close()

	res, err := ghcnd.ParseStations(f)
	if err != nil {
		return nil, fmt.Errorf("parse stations: %w", err)
	}
	p.metrics.RowsParsed.WithLabelValues(datasetStations).Add(float64(len(res.Stations)))
	p.metrics.RowsDropped.WithLabelValues(ghcnd.DropMalformed).Add(float64(res.Skipped))

	kept := ghcnd.FilterByPrefix(res.Stations, p.opts.StationPrefixes)
	if err := parquet.WriteStations(p.lake.CleanStations(), kept); err != nil {
		return nil, fmt.Errorf("write stations: %w", err)
	}
	p.logger.Info("stations cleaned",
		"parsed", len(res.Stations),
		"skipped", res.Skipped,
		"kept", len(kept),
		"prefixes", p.opts.StationPrefixes,
	)
	return kept, nil
}

// cleanDaily writes the station-day table for one year. A missing or
// malformed archive skips the year with a warning.
func (p *Pipeline) cleanDaily(year int, stations map[string]domain.Station) error {
	path := p.lake.RawDaily(year)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		p.logger.Warn("daily file missing, skipping year", "year", year, "path", path)
		p.metrics.YearsSkipped.Inc()
		return nil
	}
	if err != nil {
		return fmt.Errorf("open daily %d: %w", year, err)
	}
	defer f.Close()

	res, err := ghcnd.ParseDailyGzip(f, p.opts.Elements)
	if errors.Is(err, ghcnd.ErrBadArchive) {
		p.logger.Warn("malformed daily archive, skipping year", "year", year, "path", path, "error", err)
		p.metrics.YearsSkipped.Inc()
		return nil
	}
	if err != nil {
		return fmt.Errorf("parse daily %d: %w", year, err)
	}
	p.metrics.RowsParsed.WithLabelValues(datasetDaily).Add(float64(len(res.Observations)))
	for reason, n := range res.Dropped {
		p.metrics.RowsDropped.WithLabelValues(reason).Add(float64(n))
	}

	days, noStation := ghcnd.JoinStations(ghcnd.Pivot(res.Observations), stations)
	p.metrics.RowsDropped.WithLabelValues(dropNoStation).Add(float64(noStation))

	if err := parquet.WriteStationDays(p.lake.CleanDaily(year), days); err != nil {
		return fmt.Errorf("write daily %d: %w", year, err)
	}
	p.logger.Info("daily table cleaned",
		"year", year,
		"observations", len(res.Observations),
		"dropped", res.Dropped,
		"no_station", noStation,
		"rows", len(days),
	)
	return nil
}

func (p *Pipeline) cleanFirePoints() error {
	paths, err := geojsonFiles(p.opts.FirePointsPath, p.lake.RawFirePointsDir())
	if err != nil {
		return fmt.Errorf("find fire points: %w", err)
	}
	if len(paths) == 0 {
		p.logger.Info("no fire occurrence points found, skipping")
		return nil
	}

	var points []domain.FirePoint
	for _, path := range paths {
		res, err := readGeoJSON(path, func(f *os.File) (geojson.PointResult, error) {
			return geojson.ReadFirePoints(f, p.logger)
		})
		if err != nil {
			return err
		}
		points = append(points, res.Points...)
		p.metrics.RowsDropped.WithLabelValues(ghcnd.DropMalformed).Add(float64(res.Skipped))
		p.logger.Info("fire points read", "path", path, "points", len(res.Points), "skipped", res.Skipped)
	}
	p.metrics.RowsParsed.WithLabelValues(datasetFirePoints).Add(float64(len(points)))

	if err := parquet.WriteFirePoints(p.lake.CleanFirePoints(), points); err != nil {
		return fmt.Errorf("write fire points: %w", err)
	}
	return nil
}

func (p *Pipeline) cleanPerimeters() error {
	paths, err := geojsonFiles(p.opts.FirePerimetersPath, p.lake.RawPerimetersDir())
	if err != nil {
		return fmt.Errorf("find fire perimeters: %w", err)
	}
	if len(paths) == 0 {
		p.logger.Info("no fire perimeters found, skipping")
		return nil
	}

	var perimeters []domain.FirePerimeter
	for _, path := range paths {
		res, err := readGeoJSON(path, func(f *os.File) (geojson.PerimeterResult, error) {
			return geojson.ReadFirePerimeters(f, p.logger)
		})
		if err != nil {
			return err
		}
		perimeters = append(perimeters, res.Perimeters...)
		p.metrics.RowsDropped.WithLabelValues(ghcnd.DropMalformed).Add(float64(res.Skipped))
		p.metrics.RowsDropped.WithLabelValues(dropGeometry).Add(float64(res.Emptied))
		p.logger.Info("fire perimeters read",
			"path", path,
			"perimeters", len(res.Perimeters),
			"repaired", res.Repaired,
			"emptied", res.Emptied,
			"skipped", res.Skipped,
		)
	}
	p.metrics.RowsParsed.WithLabelValues(datasetPerimeters).Add(float64(len(perimeters)))

	if outside := assignPerimeterHexes(perimeters, p.grid); outside > 0 {
		p.logger.Info("perimeters outside the grid", "count", outside)
	}
	if err := parquet.WritePerimeters(p.lake.CleanPerimeters(), perimeters); err != nil {
		return fmt.Errorf("write fire perimeters: %w", err)
	}
	return nil
}

// assignPerimeterHexes sets each perimeter's primary cell and returns how many
// non-empty perimeters miss the grid.
func assignPerimeterHexes(perimeters []domain.FirePerimeter, grid *hexgrid.Grid) int {
	outside := 0
	for i := range perimeters {
		if len(perimeters[i].Polygon) == 0 {
			continue
		}
		id, ok := grid.AssignPolygon(perimeters[i].Polygon)
		if !ok {
			outside++
			continue
		}
		perimeters[i].HexID = id
	}
	return outside
}

func readGeoJSON[T any](path string, read func(*os.File) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	res, err := read(f)
	if err != nil {
		return zero, fmt.Errorf("read %s: %w", path, err)
	}
	return res, nil
}

// geojsonFiles resolves the input files of a fire layer. An explicit path may
// name a file or a directory; otherwise the raw zone directory is searched.
// A missing directory yields no files.
func geojsonFiles(explicit, rawDir string) ([]string, error) {
	dir := rawDir
	if explicit != "" {
		info, err := os.Stat(explicit)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return []string{explicit}, nil
		}
		dir = explicit
	}
	var paths []string
	for _, pattern := range []string{"*.geojson", "*.json"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)
	return paths, nil
}
