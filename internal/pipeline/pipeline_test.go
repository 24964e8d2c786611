package pipeline_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	h3 "github.com/uber/h3-go/v3"

	"github.com/couchcryptid/wildfire-hex-etl/internal/adapter/parquet"
	"github.com/couchcryptid/wildfire-hex-etl/internal/config"
	"github.com/couchcryptid/wildfire-hex-etl/internal/domain"
	"github.com/couchcryptid/wildfire-hex-etl/internal/lake"
	"github.com/couchcryptid/wildfire-hex-etl/internal/observability"
	"github.com/couchcryptid/wildfire-hex-etl/internal/pipeline"
)

// --- fakes ---

type fakeDownloader struct {
	files map[string][]byte
	calls []string
}

func (f *fakeDownloader) StationsURL() string      { return "mem://stations.txt" }
func (f *fakeDownloader) DailyURL(year int) string { return fmt.Sprintf("mem://%d.csv.gz", year) }
func (f *fakeDownloader) ReadmeURL() string        { return "mem://readme.html" }

func (f *fakeDownloader) Download(ctx context.Context, url, dest string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.calls = append(f.calls, url)
	body, ok := f.files[url]
	if !ok {
		return 0, fmt.Errorf("GET %s: 404 Not Found", url)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}
	return int64(len(body)), os.WriteFile(dest, body, 0o600)
}

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]domain.HexRecord
	err     error
}

func (f *fakePublisher) PublishBatch(_ context.Context, records []domain.HexRecord) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]domain.HexRecord(nil), records...))
	return nil
}

func (f *fakePublisher) total() int {
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

// --- fixtures ---

func stationLine(id string, lat, lon, elev float64, name string) string {
	return fmt.Sprintf("%-11s %8.4f %9.4f %6.1f %-2s %s", id, lat, lon, elev, "", name)
}

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := io.WriteString(zw, s)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func testOptions() pipeline.Options {
	return pipeline.Options{
		StartYear:         2021,
		EndYear:           2022,
		Elements:          domain.AllElements,
		StationPrefixes:   []string{"US"},
		AverageWindowDays: 1,
		PublishBatchSize:  1,
	}
}

type harness struct {
	lake       *lake.Lake
	downloader *fakeDownloader
	publisher  *fakePublisher
	pipeline   *pipeline.Pipeline
	center     string
}

func newHarness(t *testing.T, opts pipeline.Options) *harness {
	t.Helper()
	g, center, c := newTestGrid(t)

	stations := strings.Join([]string{
		stationLine("US000000001", c.Latitude, c.Longitude, 250, "CENTER"),
		stationLine("US000000002", c.Latitude+0.005, c.Longitude, 350, "CENTER NORTH"),
		stationLine("CA000000003", c.Latitude, c.Longitude, 10, "FILTERED"),
	}, "\n")
	daily2021 := strings.Join([]string{
		"US000000001,20210701,PRCP,10,,,,",
		"US000000002,20210701,PRCP,30,,,,",
		"US000000001,20210701,TMAX,300,,,,",
		"US000000001,20210702,PRCP,0,,,,",
		"CA000000003,20210701,PRCP,500,,,,",
		"US000000001,20210701,WESD,7,,,,",
	}, "\n") + "\n"

	d := &fakeDownloader{files: map[string][]byte{
		"mem://readme.html":  []byte("<html></html>"),
		"mem://stations.txt": []byte(stations + "\n"),
		"mem://2021.csv.gz":  gzipped(t, daily2021),
		"mem://2022.csv.gz":  []byte("not gzip at all"),
	}}
	l := lake.New(filepath.Join(t.TempDir(), "lake"))
	pub := &fakePublisher{}
	p := pipeline.New(opts, l, d, g, pub, observability.NewMetricsForTesting(), slog.Default())
	return &harness{lake: l, downloader: d, publisher: pub, pipeline: p, center: center}
}

// --- tests ---

func TestPipeline_RunAll(t *testing.T) {
	h := newHarness(t, testOptions())
	ctx := context.Background()

	require.Error(t, h.pipeline.CheckReadiness(ctx))
	require.NoError(t, h.pipeline.Run(ctx, pipeline.StageAll))
	require.NoError(t, h.pipeline.CheckReadiness(ctx))

	stations, err := parquet.ReadStations(h.lake.CleanStations())
	require.NoError(t, err)
	assert.Len(t, stations, 2, "CA station filtered by prefix")

	_, err = os.Stat(h.lake.CleanDaily(2022))
	assert.True(t, errors.Is(err, os.ErrNotExist), "malformed year is skipped")

	records, err := parquet.ReadHexRecords(h.lake.CuratedHexes(2021))
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, h.center, first.HexID)
	assert.Equal(t, time.Date(2021, time.July, 1, 0, 0, 0, 0, time.UTC), first.Date())
	assert.Equal(t, int32(2), first.StationCount)
	assert.InDelta(t, 20, first.Value(domain.FieldPrecipitation), 1e-9)
	assert.InDelta(t, 300, first.Value(domain.FieldTempMax), 1e-9)
	assert.InDelta(t, 300, first.Value(domain.FieldElevation), 1e-9)
	assert.Nil(t, first.Snowfall)

	_, err = os.Stat(h.lake.CuratedShapefile(2021))
	require.NoError(t, err)
	assert.Equal(t, 2, h.publisher.total())
	assert.Len(t, h.publisher.batches, 2, "batch size of one")
}

func TestPipeline_WindowSpansYearBoundary(t *testing.T) {
	opts := testOptions()
	opts.AverageWindowDays = 2
	h := newHarness(t, opts)
	h.downloader.files["mem://2021.csv.gz"] = gzipped(t, "US000000001,20211231,PRCP,40,,,,\n")
	h.downloader.files["mem://2022.csv.gz"] = gzipped(t, "US000000001,20220101,PRCP,20,,,,\n")

	ctx := context.Background()
	for _, s := range []string{pipeline.StageInit, pipeline.StageDownload, pipeline.StageClean, pipeline.StageHexes} {
		require.NoError(t, h.pipeline.Run(ctx, s))
	}

	records, err := parquet.ReadHexRecords(h.lake.CuratedHexes(2022))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC), records[0].Date())
	assert.InDelta(t, 30, records[0].Value(domain.FieldPrecipitation), 1e-9)
}

func TestPipeline_DownloadJoinsYearErrors(t *testing.T) {
	opts := testOptions()
	opts.EndYear = 2023
	h := newHarness(t, opts)

	err := h.pipeline.Run(context.Background(), pipeline.StageDownload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "download 2023")

	_, statErr := os.Stat(h.lake.RawDaily(2022))
	require.NoError(t, statErr, "later years still downloaded")
	want := []string{"mem://readme.html", "mem://stations.txt", "mem://2021.csv.gz", "mem://2022.csv.gz", "mem://2023.csv.gz"}
	if diff := cmp.Diff(want, h.downloader.calls); diff != "" {
		t.Errorf("download order mismatch (-want +got):\n%s", diff)
	}
}

func TestPipeline_MissingReadmeIsNotFatal(t *testing.T) {
	h := newHarness(t, testOptions())
	delete(h.downloader.files, "mem://readme.html")
	require.NoError(t, h.pipeline.Run(context.Background(), pipeline.StageDownload))
}

func TestPipeline_UnknownStage(t *testing.T) {
	h := newHarness(t, testOptions())
	err := h.pipeline.Run(context.Background(), "transmogrify")
	require.ErrorIs(t, err, pipeline.ErrUnknownStage)
}

func TestPipeline_CanceledContext(t *testing.T) {
	h := newHarness(t, testOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.pipeline.Run(ctx, pipeline.StageAll)
	require.ErrorIs(t, err, context.Canceled)
	assert.Error(t, h.pipeline.CheckReadiness(context.Background()))
}

func TestPipeline_PublishDisabled(t *testing.T) {
	g, _, _ := newTestGrid(t)
	l := lake.New(t.TempDir())
	p := pipeline.New(testOptions(), l, &fakeDownloader{}, g, nil, observability.NewMetricsForTesting(), slog.Default())
	err := p.Run(context.Background(), pipeline.StagePublish)
	require.ErrorIs(t, err, pipeline.ErrPublishDisabled)
}

func TestPipeline_PublishError(t *testing.T) {
	h := newHarness(t, testOptions())
	ctx := context.Background()
	for _, s := range []string{pipeline.StageInit, pipeline.StageDownload, pipeline.StageClean, pipeline.StageHexes} {
		require.NoError(t, h.pipeline.Run(ctx, s))
	}
	h.publisher.err = errors.New("broker unavailable")
	err := h.pipeline.Run(ctx, pipeline.StagePublish)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")
}

func TestPipeline_FireLayersAndPredictions(t *testing.T) {
	opts := testOptions()
	opts.EndYear = 2021
	h := newHarness(t, opts)
	ctx := context.Background()

	idx := h3.FromString(h.center)
	c := h3.ToGeo(idx)
	points := fmt.Sprintf(`{"type":"FeatureCollection","features":[
		{"type":"Feature","id":7,"geometry":{"type":"Point","coordinates":[%f,%f]},
		 "properties":{"FIRENAME":"CREEK","DISCOVERYDATE":"2021/07/02"}}]}`, c.Longitude, c.Latitude)
	lon, lat := c.Longitude, c.Latitude
	perimeters := fmt.Sprintf(`{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[%f,%f],[%f,%f],[%f,%f],[%f,%f]]]},
		 "properties":{"UNIQFIREID":"P1","DISCOVERYDATE":"2021-07-02"}}]}`,
		lon-0.01, lat-0.01, lon+0.01, lat-0.01, lon+0.01, lat+0.01, lon-0.01, lat+0.01)

	require.NoError(t, h.pipeline.Run(ctx, pipeline.StageInit))
	require.NoError(t, os.WriteFile(filepath.Join(h.lake.RawFirePointsDir(), "points.geojson"), []byte(points), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(h.lake.RawPerimetersDir(), "perimeters.geojson"), []byte(perimeters), 0o600))

	for _, s := range []string{pipeline.StageDownload, pipeline.StageClean, pipeline.StageHexes} {
		require.NoError(t, h.pipeline.Run(ctx, s))
	}

	perims, err := parquet.ReadPerimeters(h.lake.CleanPerimeters())
	require.NoError(t, err)
	require.Len(t, perims, 1)
	assert.Equal(t, h.center, perims[0].HexID)

	records, err := parquet.ReadHexRecords(h.lake.CuratedHexes(2021))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.False(t, records[0].Burned)
	assert.Equal(t, int32(0), records[0].FireCount)
	assert.True(t, records[1].Burned)
	assert.Equal(t, int32(1), records[1].FireCount)
}

func TestPipeline_StageDurationUsesClock(t *testing.T) {
	h := newHarness(t, testOptions())
	clock := clockwork.NewFakeClock()
	h.pipeline.WithClock(clock)
	require.NoError(t, h.pipeline.Run(context.Background(), pipeline.StageInit))
	assert.NotEmpty(t, h.pipeline.RunID())
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		StartYear:         2020,
		EndYear:           2022,
		Elements:          []string{"PRCP", "TMAX"},
		StationPrefixes:   []string{"US"},
		AverageWindowDays: 3,
		PredictionsPath:   "preds.parquet",
	}
	opts, err := pipeline.OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, []domain.Element{domain.ElementPRCP, domain.ElementTMAX}, opts.Elements)
	assert.Equal(t, []int{2020, 2021, 2022}, opts.Years())
	assert.Equal(t, 3, opts.AverageWindowDays)

	cfg.Elements = []string{"WESD"}
	_, err = pipeline.OptionsFromConfig(cfg)
	require.Error(t, err)
}
