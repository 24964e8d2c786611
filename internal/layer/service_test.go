package layer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/wildfire-hex-etl/internal/adapter/parquet"
	"github.com/couchcryptid/wildfire-hex-etl/internal/domain"
	"github.com/couchcryptid/wildfire-hex-etl/internal/fields"
	"github.com/couchcryptid/wildfire-hex-etl/internal/hexgrid"
	"github.com/couchcryptid/wildfire-hex-etl/internal/lake"
	"github.com/couchcryptid/wildfire-hex-etl/internal/observability"
	"github.com/couchcryptid/wildfire-hex-etl/internal/render"
)

type countingSource struct {
	loads   map[int]int
	records map[int][]domain.HexRecord
	points  []domain.FirePoint
}

func (s *countingSource) LoadYear(_ context.Context, year int) ([]domain.HexRecord, error) {
	s.loads[year]++
	recs, ok := s.records[year]
	if !ok {
		return nil, ErrNoData
	}
	return recs, nil
}

func (s *countingSource) Years(_ context.Context) ([]int, error) {
	var years []int
	for y := range s.records {
		years = append(years, y)
	}
	return years, nil
}

func (s *countingSource) FirePoints(_ context.Context) ([]domain.FirePoint, error) {
	if s.points == nil {
		return nil, ErrNoData
	}
	return s.points, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr(v float64) *float64 { return &v }

func newTestService(t *testing.T, src Source, cacheSize int) (*Service, *hexgrid.Grid) {
	t.Helper()
	grid, err := hexgrid.New(hexgrid.Center{Lat: 40, Lon: -95}, 4, 1)
	require.NoError(t, err)
	svc := NewService(src, grid, fields.DefaultCatalog(fields.PolicyFixed, discardLogger()), cacheSize,
		observability.NewMetricsForTesting(), discardLogger())
	return svc, grid
}

func fixtureRecords(ids []string) map[int][]domain.HexRecord {
	return map[int][]domain.HexRecord{
		2021: {
			{HexID: ids[0], Year: 2021, Month: 7, Day: 4, State: "Kansas", TempMax: ptr(300), FireCount: 1},
			{HexID: ids[1], Year: 2021, Month: 7, Day: 4, TempMax: ptr(100)},
			{HexID: ids[0], Year: 2021, Month: 7, Day: 5, TempMax: ptr(320)},
		},
		2022: {
			{HexID: ids[0], Year: 2022, Month: 1, Day: 1, SnowDepth: ptr(50)},
		},
	}
}

func day(s string) time.Time {
	d, _ := time.Parse(time.DateOnly, s)
	return d
}

func TestService_Layer(t *testing.T) {
	src := &countingSource{loads: map[int]int{}}
	svc, grid := newTestService(t, src, 4)
	src.records = fixtureRecords(grid.IDs())

	ov, err := svc.Layer(context.Background(), day("2021-07-04"), "T-MAX", "")
	require.NoError(t, err)
	assert.Equal(t, "tmax", ov.Field)
	assert.Equal(t, fields.PolicyFixed, ov.Policy)
	assert.Len(t, ov.Features, 2)

	ov, err = svc.Layer(context.Background(), day("2021-07-05"), "tmax", fields.PolicyData)
	require.NoError(t, err)
	assert.Len(t, ov.Features, 1)
	assert.Equal(t, fields.PolicyData, ov.Policy)

	assert.Equal(t, 1, src.loads[2021], "year should be loaded once and then cached")
}

func TestService_LayerErrors(t *testing.T) {
	src := &countingSource{loads: map[int]int{}}
	svc, grid := newTestService(t, src, 4)
	src.records = fixtureRecords(grid.IDs())

	_, err := svc.Layer(context.Background(), day("2021-07-04"), "humidity", "")
	assert.ErrorIs(t, err, fields.ErrUnknownField)

	_, err = svc.Layer(context.Background(), day("2021-08-01"), "tmax", "")
	assert.ErrorIs(t, err, ErrNoData)

	_, err = svc.Layer(context.Background(), day("1999-08-01"), "tmax", "")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestService_CacheEvictsYears(t *testing.T) {
	src := &countingSource{loads: map[int]int{}}
	svc, grid := newTestService(t, src, 1)
	src.records = fixtureRecords(grid.IDs())
	ctx := context.Background()

	_, err := svc.Layer(ctx, day("2021-07-04"), "tmax", "")
	require.NoError(t, err)
	_, err = svc.Layer(ctx, day("2022-01-01"), "snwd", "")
	require.NoError(t, err)
	_, err = svc.Layer(ctx, day("2021-07-04"), "tmax", "")
	require.NoError(t, err)

	assert.Equal(t, 2, src.loads[2021])
	assert.Equal(t, 1, src.loads[2022])
}

func TestService_Colorbar(t *testing.T) {
	svc, _ := newTestService(t, &countingSource{loads: map[int]int{}}, 1)

	lg, err := svc.Colorbar("fire_prob", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"0%", "50%", "100%"}, []string{lg.Ticks[0].Label, lg.Ticks[1].Label, lg.Ticks[2].Label})

	_, err = svc.Colorbar("fire_prob", 1)
	assert.ErrorIs(t, err, render.ErrTooFewTicks)

	_, err = svc.Colorbar("nope", 3)
	assert.ErrorIs(t, err, fields.ErrUnknownField)
}

func TestService_Inspect(t *testing.T) {
	src := &countingSource{loads: map[int]int{}}
	svc, grid := newTestService(t, src, 4)
	ids := grid.IDs()
	src.records = fixtureRecords(ids)

	got, err := svc.Inspect(context.Background(), ids[0], day("2021-07-04"))
	require.NoError(t, err)
	assert.Equal(t, "Kansas", got.State)
	assert.Len(t, got.Boundary, 7)

	byKey := map[string]FieldValue{}
	for _, v := range got.Values {
		byKey[v.Key] = v
	}
	require.NotNil(t, byKey["tmax"].Value)
	assert.Equal(t, "86°F", byKey["tmax"].Display)
	assert.Nil(t, byKey["prcp"].Value)
	assert.Equal(t, fields.NoData, byKey["prcp"].Display)
	assert.Equal(t, "1", byKey["fire_count"].Display)

	_, err = svc.Inspect(context.Background(), "ffffffffffffff", day("2021-07-04"))
	assert.ErrorIs(t, err, hexgrid.ErrUnknownCell)

	_, err = svc.Inspect(context.Background(), ids[1], day("2021-07-05"))
	assert.ErrorIs(t, err, ErrNoData)
}

func TestService_CheckReadiness(t *testing.T) {
	src := &countingSource{loads: map[int]int{}}
	svc, _ := newTestService(t, src, 1)
	assert.True(t, errors.Is(svc.CheckReadiness(context.Background()), ErrNoData))

	src.records = map[int][]domain.HexRecord{2021: nil}
	assert.NoError(t, svc.CheckReadiness(context.Background()))
}

func TestLakeSource(t *testing.T) {
	l := lake.New(t.TempDir())
	require.NoError(t, l.Init(discardLogger()))
	src := LakeSource{Lake: l}

	_, err := src.LoadYear(context.Background(), 2021)
	assert.ErrorIs(t, err, ErrNoData)

	recs := []domain.HexRecord{{HexID: "8426cb3ffffffff", Year: 2021, Month: 7, Day: 4}}
	require.NoError(t, parquet.WriteHexRecords(l.CuratedHexes(2021), recs))

	got, err := src.LoadYear(context.Background(), 2021)
	require.NoError(t, err)
	assert.Equal(t, recs, got)

	years, err := src.Years(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{2021}, years)
	assert.FileExists(t, filepath.Join(l.Root(), "curated", "hexes", "2021.parquet"))

	_, err = src.FirePoints(context.Background())
	assert.ErrorIs(t, err, ErrNoData)

	points := []domain.FirePoint{{ID: "p1", Name: "EAST TROUBLESOME", Lat: 40.2, Lon: -105.9, DiscoveryDate: day("2020-10-14")}}
	require.NoError(t, parquet.WriteFirePoints(l.CleanFirePoints(), points))
	gotPoints, err := src.FirePoints(context.Background())
	require.NoError(t, err)
	require.Len(t, gotPoints, 1)
	assert.Equal(t, "p1", gotPoints[0].ID)
}
