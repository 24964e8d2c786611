package ghcnd

import (
	"bytes"
	"compress/gzip"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/wildfire-hex-etl/internal/domain"
)

const stationFixture = `ACW00011604  17.1167  -61.7833   10.1    ST JOHNS COOLIDGE FLD
US1COAD0001  39.8466 -104.7789 1575.2 CO DENVER 1.0 SSE
CA001010066  48.8667 -123.2833    4.0 BC ACTIVE PASS                             71001
MXN00001001  21.8833 -102.3000 -999.9    AGUASCALIENTES
BADLINE      notalat -104.7789 1575.2 CO BROKEN
`

func TestParseStations(t *testing.T) {
	res, err := ParseStations(strings.NewReader(stationFixture))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Stations, 4)

	want := domain.Station{
		StationID: "US1COAD0001",
		Latitude:  39.8466,
		Longitude: -104.7789,
		Elevation: 1575.2,
		Name:      "DENVER 1.0 SSE",
	}
	if diff := cmp.Diff(want, res.Stations[1]); diff != "" {
		t.Errorf("station mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "ACTIVE PASS", res.Stations[2].Name)
	assert.False(t, res.Stations[3].HasElevation())
}

func TestParseStations_ShortLine(t *testing.T) {
	res, err := ParseStations(strings.NewReader("USC00000001  40.0000  -95.0000\n"))
	require.NoError(t, err)
	require.Len(t, res.Stations, 1)
	assert.Equal(t, domain.MissingElevation, res.Stations[0].Elevation)
	assert.Empty(t, res.Stations[0].Name)
}

func TestFilterByPrefix(t *testing.T) {
	res, err := ParseStations(strings.NewReader(stationFixture))
	require.NoError(t, err)

	kept := FilterByPrefix(res.Stations, []string{"US", "CA", "MX"})
	ids := make([]string, 0, len(kept))
	for _, s := range kept {
		ids = append(ids, s.StationID)
	}
	assert.Equal(t, []string{"US1COAD0001", "CA001010066", "MXN00001001"}, ids)

	assert.Len(t, FilterByPrefix(res.Stations, nil), 4)
}

const dailyFixture = `US1COAD0001,20200101,PRCP,25,,,N,
US1COAD0001,20200101,TMAX,56,,,N,0700
US1COAD0001,20200102,SNOW,10,,,N,
US1COAD0001,20200102,WESD,3,,,N,
CA001010066,20200101,TMIN,-31,,,C,
CA001010066,2020XX01,TMIN,-31,,,C,
CA001010066,20200101,TMAX,abc,,,C,
ZZ000000001,20200101,PRCP,0,,,N,
`

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestParseDailyGzip(t *testing.T) {
	res, err := ParseDailyGzip(bytes.NewReader(gzipBytes(t, dailyFixture)), nil)
	require.NoError(t, err)

	assert.Len(t, res.Observations, 5)
	assert.Equal(t, 1, res.Dropped[DropElement])
	assert.Equal(t, 2, res.Dropped[DropMalformed])

	first := res.Observations[0]
	assert.Equal(t, "US1COAD0001", first.StationID)
	assert.Equal(t, domain.ElementPRCP, first.Element)
	assert.InDelta(t, 25.0, first.Value, 1e-9)
	assert.Equal(t, 2020, first.Date.Year())
}

func TestParseDailyGzip_KeepSubset(t *testing.T) {
	res, err := ParseDailyGzip(bytes.NewReader(gzipBytes(t, dailyFixture)), []domain.Element{domain.ElementTMAX})
	require.NoError(t, err)
	require.Len(t, res.Observations, 1)
	assert.Equal(t, domain.ElementTMAX, res.Observations[0].Element)
}

func TestParseDailyGzip_BadArchive(t *testing.T) {
	_, err := ParseDailyGzip(strings.NewReader("definitely not gzip"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadArchive))

	truncated := gzipBytes(t, dailyFixture)
	truncated = truncated[:len(truncated)-12]
	_, err = ParseDailyGzip(bytes.NewReader(truncated), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadArchive)
}

func TestParseDailyGzip_RaggedRows(t *testing.T) {
	const ragged = `US1COAD0001,20200101,PRCP,25,,,N,
US1COAD0001,20200102,PRCP,7,,,N
US1COAD0001,20200103,PRCP,0,,,N,
US1COAD0001,20200104
US1COAD0001,20200105,PRCP,3,,,N,0700,extra
US1COAD0001,20200106,PRCP,4
`
	res, err := ParseDailyGzip(bytes.NewReader(gzipBytes(t, ragged)), nil)
	require.NoError(t, err)

	require.Len(t, res.Observations, 4)
	assert.Equal(t, 2, res.Dropped[DropMalformed])
	days := make([]int, 0, len(res.Observations))
	for _, o := range res.Observations {
		days = append(days, o.Date.Day())
	}
	assert.Equal(t, []int{1, 2, 3, 6}, days)
}

func TestParseDaily_ManyRows(t *testing.T) {
	var b strings.Builder
	for i := 0; i < dailyBatch+10; i++ {
		b.WriteString("US1COAD0001,20200101,TMAX,10,,,N,\n")
		b.WriteString("US1COAD0001,20200101,WESD,3,,,N,\n")
	}
	res, err := ParseDaily(strings.NewReader(b.String()), nil)
	require.NoError(t, err)
	assert.Len(t, res.Observations, dailyBatch+10)
	assert.Equal(t, dailyBatch+10, res.Dropped[DropElement])
}

func TestParseDaily_Empty(t *testing.T) {
	res, err := ParseDaily(strings.NewReader(""), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Observations)
}

func TestPivotAndJoin(t *testing.T) {
	res, err := ParseDailyGzip(bytes.NewReader(gzipBytes(t, dailyFixture)), nil)
	require.NoError(t, err)

	days := Pivot(res.Observations)
	require.Len(t, days, 4)

	// Ordered by station then date.
	assert.Equal(t, "CA001010066", days[0].StationID)
	assert.Equal(t, "US1COAD0001", days[1].StationID)
	assert.Equal(t, int32(1), days[1].Day)
	assert.Equal(t, int32(2), days[2].Day)

	jan1 := days[1]
	require.NotNil(t, jan1.PRCP)
	require.NotNil(t, jan1.TMAX)
	assert.InDelta(t, 25.0, *jan1.PRCP, 1e-9)
	assert.InDelta(t, 56.0, *jan1.TMAX, 1e-9)
	assert.Nil(t, jan1.SNOW)
	assert.Nil(t, days[2].PRCP)
	assert.NotNil(t, days[2].SNOW)

	stations, err := ParseStations(strings.NewReader(stationFixture))
	require.NoError(t, err)
	joined, dropped := JoinStations(days, Index(stations.Stations))
	assert.Equal(t, 1, dropped)
	require.Len(t, joined, 3)
	assert.InDelta(t, 48.8667, joined[0].Latitude, 1e-9)
	assert.InDelta(t, 1575.2, joined[1].Elevation, 1e-9)
}

func TestPivot_LastValueWins(t *testing.T) {
	day := mustDate(t, "2021-07-04")
	days := Pivot([]domain.DailyObservation{
		{StationID: "US1", Date: day, Element: domain.ElementTMAX, Value: 300},
		{StationID: "US1", Date: day, Element: domain.ElementTMAX, Value: 310},
	})
	require.Len(t, days, 1)
	assert.InDelta(t, 310.0, *days[0].TMAX, 1e-9)
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(time.DateOnly, s)
	require.NoError(t, err)
	return d
}
