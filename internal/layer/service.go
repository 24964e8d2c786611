// Package layer serves map overlays, legends and per-hex details from the
// curated hex tables.
package layer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/wildfire-hex-etl/internal/adapter/parquet"
	"github.com/couchcryptid/wildfire-hex-etl/internal/domain"
	"github.com/couchcryptid/wildfire-hex-etl/internal/fields"
	"github.com/couchcryptid/wildfire-hex-etl/internal/hexgrid"
	"github.com/couchcryptid/wildfire-hex-etl/internal/lake"
	"github.com/couchcryptid/wildfire-hex-etl/internal/observability"
	"github.com/couchcryptid/wildfire-hex-etl/internal/render"
)

// ErrNoData is returned when no curated records exist for the request.
var ErrNoData = errors.New("no data")

// Source loads the curated records of one year and the cleaned fire points.
type Source interface {
	LoadYear(ctx context.Context, year int) ([]domain.HexRecord, error)
	Years(ctx context.Context) ([]int, error)
	FirePoints(ctx context.Context) ([]domain.FirePoint, error)
}

// LakeSource reads curated yearly Parquet tables from the datalake.
type LakeSource struct {
	Lake *lake.Lake
}

// LoadYear reads the curated table for year. A missing file is ErrNoData.
func (s LakeSource) LoadYear(_ context.Context, year int) ([]domain.HexRecord, error) {
	path := s.Lake.CuratedHexes(year)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: year %d", ErrNoData, year)
	}
	return parquet.ReadHexRecords(path)
}

// Years lists the years with a curated table.
func (s LakeSource) Years(_ context.Context) ([]int, error) {
	return s.Lake.CuratedYears()
}

// FirePoints reads the cleaned fire occurrence points. A missing table is
// ErrNoData.
func (s LakeSource) FirePoints(_ context.Context) ([]domain.FirePoint, error) {
	path := s.Lake.CleanFirePoints()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: fire points", ErrNoData)
	}
	return parquet.ReadFirePoints(path)
}

// yearTable indexes one year of records by date and by hex.
type yearTable struct {
	byDate map[string][]domain.HexRecord
	byHex  map[string]domain.HexRecord
}

func hexKey(id, date string) string { return id + "|" + date }

func newYearTable(records []domain.HexRecord) *yearTable {
	t := &yearTable{
		byDate: make(map[string][]domain.HexRecord),
		byHex:  make(map[string]domain.HexRecord, len(records)),
	}
	for _, r := range records {
		d := r.Date().Format(time.DateOnly)
		t.byDate[d] = append(t.byDate[d], r)
		t.byHex[hexKey(r.HexID, d)] = r
	}
	return t
}

// Service answers layer, legend and inspect queries. Loaded years are kept in
// an LRU cache.
type Service struct {
	source  Source
	grid    *hexgrid.Grid
	catalog *fields.Catalog
	cache   *lruCache[int, *yearTable]
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewService creates a layer service caching up to cacheSize years.
func NewService(source Source, grid *hexgrid.Grid, catalog *fields.Catalog, cacheSize int, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		source:  source,
		grid:    grid,
		catalog: catalog,
		cache:   newLRUCache[int, *yearTable](cacheSize),
		metrics: metrics,
		logger:  logger,
	}
}

// Fields returns the field catalog.
func (s *Service) Fields() []fields.Field {
	return s.catalog.Fields()
}

// Layer renders fieldName for every hex on date. An empty policy uses the
// field default.
func (s *Service) Layer(ctx context.Context, date time.Time, fieldName string, policy fields.Policy) (render.Overlay, error) {
	f, err := s.catalog.Lookup(fieldName)
	if err != nil {
		return render.Overlay{}, err
	}
	if policy == "" {
		policy = f.Policy
	}
	s.metrics.LayerRequests.WithLabelValues(f.Key, string(policy)).Inc()

	records, err := s.recordsOn(ctx, date)
	if err != nil {
		return render.Overlay{}, err
	}
	ov, err := render.Layer(records, s.grid, f, policy)
	if err != nil {
		return render.Overlay{}, err
	}
	if ov.Skipped > 0 {
		s.logger.Warn("records outside grid skipped", "date", date.Format(time.DateOnly), "skipped", ov.Skipped)
	}
	return ov, nil
}

// Colorbar returns the legend for fieldName over its fixed range.
func (s *Service) Colorbar(fieldName string, ticks int) (render.Legend, error) {
	f, err := s.catalog.Lookup(fieldName)
	if err != nil {
		return render.Legend{}, err
	}
	return render.Colorbar(f, ticks)
}

// FieldValue is one field of an inspected hex.
type FieldValue struct {
	Key     string   `json:"key"`
	Label   string   `json:"label"`
	Value   *float64 `json:"value"`
	Display string   `json:"display"`
}

// Inspection is the click-to-inspect view of a hex on a date.
type Inspection struct {
	HexID        string       `json:"hex_id"`
	Date         string       `json:"date"`
	State        string       `json:"state,omitempty"`
	StationCount int32        `json:"station_count"`
	Burned       bool         `json:"burned"`
	Boundary     [][2]float64 `json:"boundary"`
	Values       []FieldValue `json:"values"`
}

// Inspect returns every catalog field of one hex on date.
func (s *Service) Inspect(ctx context.Context, hexID string, date time.Time) (Inspection, error) {
	boundary, err := s.grid.Boundary(hexID)
	if err != nil {
		return Inspection{}, err
	}
	table, err := s.year(ctx, date.Year())
	if err != nil {
		return Inspection{}, err
	}
	day := date.Format(time.DateOnly)
	r, ok := table.byHex[hexKey(hexID, day)]
	if !ok {
		return Inspection{}, fmt.Errorf("%w: hex %s on %s", ErrNoData, hexID, day)
	}

	out := Inspection{
		HexID:        hexID,
		Date:         day,
		State:        r.State,
		StationCount: r.StationCount,
		Burned:       r.Burned,
		Boundary:     boundary,
	}
	for _, f := range s.catalog.Fields() {
		v := r.Value(f.Key)
		fv := FieldValue{Key: f.Key, Label: f.Label, Display: f.FormatValue(v)}
		if !math.IsNaN(v) {
			fv.Value = &v
		}
		out.Values = append(out.Values, fv)
	}
	return out, nil
}

// CheckReadiness reports ready once at least one curated year exists.
func (s *Service) CheckReadiness(ctx context.Context) error {
	years, err := s.source.Years(ctx)
	if err != nil {
		return err
	}
	if len(years) == 0 {
		return fmt.Errorf("%w: no curated hex tables", ErrNoData)
	}
	return nil
}

func (s *Service) recordsOn(ctx context.Context, date time.Time) ([]domain.HexRecord, error) {
	table, err := s.year(ctx, date.Year())
	if err != nil {
		return nil, err
	}
	day := date.Format(time.DateOnly)
	records := table.byDate[day]
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, day)
	}
	return records, nil
}

func (s *Service) year(ctx context.Context, year int) (*yearTable, error) {
	if t, ok := s.cache.get(year); ok {
		s.metrics.LayerCache.WithLabelValues("hit").Inc()
		return t, nil
	}
	s.metrics.LayerCache.WithLabelValues("miss").Inc()

	records, err := s.source.LoadYear(ctx, year)
	if err != nil {
		return nil, err
	}
	t := newYearTable(records)
	s.cache.put(year, t)
	s.logger.Info("curated year loaded", "year", year, "records", len(records))
	return t, nil
}
