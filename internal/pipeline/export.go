package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/wildfire-hex-etl/internal/adapter/parquet"
	"github.com/couchcryptid/wildfire-hex-etl/internal/adapter/shapefile"
	"github.com/couchcryptid/wildfire-hex-etl/internal/domain"
)

// exportAll writes a hex layer shapefile for every year with a curated table.
func (p *Pipeline) exportAll(ctx context.Context) error {
	for _, year := range p.opts.Years() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !exists(p.lake.CuratedHexes(year)) {
			p.logger.Warn("no curated hex table, skipping export", "year", year)
			continue
		}
		if err := p.exportYear(year); err != nil {
			return err
		}
	}
	return nil
}

// exportYear writes the curated hex table of one year as a shapefile.
func (p *Pipeline) exportYear(year int) error {
	records, err := parquet.ReadHexRecords(p.lake.CuratedHexes(year))
	if err != nil {
		return fmt.Errorf("export %d: %w", year, err)
	}
	path := p.lake.CuratedShapefile(year)
	n, err := shapefile.WriteHexes(path, p.grid, records)
	if err != nil {
		return fmt.Errorf("export %d: %w", year, err)
	}
	p.logger.Info("shapefile written", "year", year, "path", path, "features", n)
	return nil
}

// publish sends every curated record of the run's years to the publisher in
// fixed-size batches.
func (p *Pipeline) publish(ctx context.Context) error {
	if p.publisher == nil {
		return ErrPublishDisabled
	}
	for _, year := range p.opts.Years() {
		if !exists(p.lake.CuratedHexes(year)) {
			p.logger.Warn("no curated hex table, skipping publish", "year", year)
			continue
		}
		records, err := parquet.ReadHexRecords(p.lake.CuratedHexes(year))
		if err != nil {
			return fmt.Errorf("publish %d: %w", year, err)
		}
		if err := p.publishRecords(ctx, records); err != nil {
			return fmt.Errorf("publish %d: %w", year, err)
		}
		p.logger.Info("hex records published", "year", year, "records", len(records))
	}
	return nil
}

func (p *Pipeline) publishRecords(ctx context.Context, records []domain.HexRecord) error {
	for start := 0; start < len(records); start += p.opts.PublishBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+p.opts.PublishBatchSize, len(records))
		if err := p.publisher.PublishBatch(ctx, records[start:end]); err != nil {
			return err
		}
		p.metrics.RecordsPublished.Add(float64(end - start))
	}
	return nil
}
