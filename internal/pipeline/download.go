package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// download fetches the GHCN-D readme, the station inventory and one daily
// file per year into the raw zone. A failed year does not stop the others;
// their errors are joined.
func (p *Pipeline) download(ctx context.Context) error {
	if _, err := p.downloader.Download(ctx, p.downloader.ReadmeURL(), p.lake.Readme()); err != nil {
		// metadata only; the tables do not depend on it
		p.logger.Warn("readme download failed", "error", err)
	}

	n, err := p.downloader.Download(ctx, p.downloader.StationsURL(), p.lake.RawStations())
	if err != nil {
		return fmt.Errorf("download stations: %w", err)
	}
	p.logger.Info("stations downloaded", "path", p.lake.RawStations(), "bytes", n)

	var errs []error
	for _, year := range p.opts.Years() {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := p.downloader.Download(ctx, p.downloader.DailyURL(year), p.lake.RawDaily(year))
		if err != nil {
			errs = append(errs, fmt.Errorf("download %d: %w", year, err))
			continue
		}
		p.logger.Info("daily file downloaded", "year", year, "bytes", n)
	}
	return errors.Join(errs...)
}
