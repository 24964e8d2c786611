package lake

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_CreatesLayoutIdempotently(t *testing.T) {
	root := filepath.Join(t.TempDir(), "lake")
	l := New(root)

	require.NoError(t, l.Init(slog.Default()))
	require.NoError(t, l.Init(slog.Default()))

	for _, rel := range layout {
		info, err := os.Stat(filepath.Join(root, rel))
		require.NoError(t, err, rel)
		assert.True(t, info.IsDir(), rel)
	}
}

func TestPaths(t *testing.T) {
	l := New("/lake")
	assert.Equal(t, "/lake/raw/ghcnd/stations.txt", l.RawStations())
	assert.Equal(t, "/lake/raw/ghcnd/daily/2021.csv.gz", l.RawDaily(2021))
	assert.Equal(t, "/lake/clean/ghcnd/stations.parquet", l.CleanStations())
	assert.Equal(t, "/lake/clean/ghcnd/daily/2021.parquet", l.CleanDaily(2021))
	assert.Equal(t, "/lake/curated/hexes/2021.parquet", l.CuratedHexes(2021))
	assert.Equal(t, "/lake/curated/hexes/2021.shp", l.CuratedShapefile(2021))
	assert.Equal(t, "/lake/metadata/ghcnd_readme.html", l.Readme())
	assert.Equal(t, "/lake/raw/fire_perimeter", l.RawPerimetersDir())
	assert.Equal(t, "/lake/clean/fire_occurrence_point/points.parquet", l.CleanFirePoints())
}

func TestCuratedYears(t *testing.T) {
	root := t.TempDir()
	l := New(root)

	years, err := l.CuratedYears()
	require.NoError(t, err)
	assert.Empty(t, years)

	require.NoError(t, l.Init(slog.Default()))
	for _, name := range []string{"2024.parquet", "2019.parquet", "2024.shp", "notes.parquet"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, "curated", "hexes", name), nil, 0o600))
	}

	years, err = l.CuratedYears()
	require.NoError(t, err)
	assert.Equal(t, []int{2019, 2024}, years)
}
