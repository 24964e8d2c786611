package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/couchcryptid/wildfire-hex-etl/internal/adapter/parquet"
	"github.com/couchcryptid/wildfire-hex-etl/internal/domain"
)

// fireInputs are the optional tables joined onto the weather records.
type fireInputs struct {
	points      []domain.FirePoint
	perimeters  []domain.FirePerimeter
	predictions []domain.Prediction
}

// buildHexes writes one curated hex table per year: station days averaged per
// hex, smoothed over the trailing window, then joined with fire counts, burned
// flags and model predictions.
func (p *Pipeline) buildHexes(ctx context.Context) error {
	inputs, err := p.loadFireInputs()
	if err != nil {
		return err
	}

	for _, year := range p.opts.Years() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.buildYear(year, inputs); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) buildYear(year int, in fireInputs) error {
	path := p.lake.CleanDaily(year)
	var days []domain.StationDay
	if exists(path) {
		var err error
		if days, err = parquet.ReadStationDays(path); err != nil {
			return err
		}
	} else {
		p.logger.Warn("no cleaned daily table, building year without weather", "year", year, "path", path)
	}

	records, outside := AggregateStations(days, p.grid, p.opts.Elements)
	p.metrics.RowsDropped.WithLabelValues(dropOutsideGrid).Add(float64(outside))
	history, err := p.previousTail(year)
	if err != nil {
		return err
	}
	records = TrailingAverage(records, history, p.opts.AverageWindowDays)

	records, firesOutside := CountFires(records, in.points, p.grid, year)
	p.metrics.RowsDropped.WithLabelValues(dropOutsideGrid).Add(float64(firesOutside))
	burned := MarkBurned(records, in.perimeters, p.grid, year)
	records, predsOutside := ApplyPredictions(records, in.predictions, p.grid, year)
	p.metrics.RowsDropped.WithLabelValues(dropOutsideGrid).Add(float64(predsOutside))

	if len(records) == 0 {
		p.logger.Warn("no hex records for year", "year", year)
		return nil
	}
	if err := parquet.WriteHexRecords(p.lake.CuratedHexes(year), records); err != nil {
		return fmt.Errorf("write hexes %d: %w", year, err)
	}
	p.metrics.HexRecordsWritten.Add(float64(len(records)))
	p.logger.Info("hex table written",
		"year", year,
		"records", len(records),
		"station_days", len(days),
		"outside_grid", outside+firesOutside+predsOutside,
		"burned", burned,
		"window_days", p.opts.AverageWindowDays,
	)
	return nil
}

// previousTail aggregates the last window-1 days of the previous year so
// early-January averages see late December. It returns nil when there is no
// window or no cleaned table for that year.
func (p *Pipeline) previousTail(year int) ([]domain.HexRecord, error) {
	window := p.opts.AverageWindowDays
	path := p.lake.CleanDaily(year - 1)
	if window <= 1 || !exists(path) {
		return nil, nil
	}
	days, err := parquet.ReadStationDays(path)
	if err != nil {
		return nil, fmt.Errorf("read previous year %d: %w", year-1, err)
	}
	cutoff := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(window - 1))
	tail := days[:0]
	for _, d := range days {
		if !d.Date().Before(cutoff) {
			tail = append(tail, d)
		}
	}
	records, _ := AggregateStations(tail, p.grid, p.opts.Elements)
	return records, nil
}

func (p *Pipeline) loadFireInputs() (fireInputs, error) {
	var in fireInputs
	var err error
	if exists(p.lake.CleanFirePoints()) {
		if in.points, err = parquet.ReadFirePoints(p.lake.CleanFirePoints()); err != nil {
			return in, err
		}
	}
	if exists(p.lake.CleanPerimeters()) {
		if in.perimeters, err = parquet.ReadPerimeters(p.lake.CleanPerimeters()); err != nil {
			return in, err
		}
	}
	if p.opts.PredictionsPath != "" {
		if in.predictions, err = parquet.ReadPredictions(p.opts.PredictionsPath); err != nil {
			return in, fmt.Errorf("predictions: %w", err)
		}
		p.metrics.RowsParsed.WithLabelValues(datasetPredictions).Add(float64(len(in.predictions)))
	}
	p.logger.Info("fire inputs loaded",
		"points", len(in.points),
		"perimeters", len(in.perimeters),
		"predictions", len(in.predictions),
	)
	return in, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
