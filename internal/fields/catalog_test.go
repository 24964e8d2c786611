package fields

import (
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/wildfire-hex-etl/internal/colormap"
	"github.com/couchcryptid/wildfire-hex-etl/internal/domain"
)

func TestLookup_ResolvesLegacyNames(t *testing.T) {
	c := DefaultCatalog(PolicyFixed, slog.Default())

	tests := []struct {
		name     string
		expected string
	}{
		{"tmax", domain.FieldTempMax},
		{"tmax_avg", domain.FieldTempMax},
		{"T-MAX", domain.FieldTempMax},
		{"Temperature Maximum (3-Day Average)", domain.FieldTempMax},
		{"Temperature Minimum (3-Day Average)", domain.FieldTempMin},
		{"normalized_probabilities", domain.FieldFireProbability},
		{"PROB-NORM", domain.FieldFireProbability},
		{"PRCP", domain.FieldPrecipitation},
		{"snow_avg", domain.FieldSnowfall},
		{"ELEV", domain.FieldElevation},
		{"FIRE", domain.FieldFireCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := c.Lookup(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, f.Key)
		})
	}
}

func TestLookup_UnknownField(t *testing.T) {
	c := DefaultCatalog(PolicyFixed, slog.Default())
	_, err := c.Lookup("humidity")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownField))
}

func TestDefaultCatalog_ColormapsExist(t *testing.T) {
	c := DefaultCatalog(PolicyFixed, slog.Default())
	for _, f := range c.Fields() {
		assert.True(t, colormap.Exists(f.Colormap), "field %s uses %s", f.Key, f.Colormap)
	}
}

func TestLoadCatalog_UnknownColormapListsKnown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fields.toml")
	require.NoError(t, os.WriteFile(path, []byte("[fields.tmax]\ncolormap = \"rainbow\"\n"), 0o600))
	_, err := LoadCatalog(path, PolicyFixed, slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"rainbow"`)
	assert.Contains(t, err.Error(), "viridis")
}

func TestField_Range(t *testing.T) {
	c := DefaultCatalog(PolicyFixed, slog.Default())
	f, err := c.Lookup("tmax")
	require.NoError(t, err)

	values := []float64{100, 250, math.NaN(), 180}

	lo, hi := f.Range(values, "")
	assert.Equal(t, -240.0, lo)
	assert.Equal(t, 560.0, hi)

	lo, hi = f.Range(values, PolicyData)
	assert.Equal(t, 100.0, lo)
	assert.Equal(t, 250.0, hi)

	lo, hi = f.Range([]float64{math.NaN()}, PolicyData)
	assert.Equal(t, -240.0, lo, "all-missing subsets fall back to the fixed range")
	assert.Equal(t, 560.0, hi)
}

func TestDefaultCatalog_PolicyDefault(t *testing.T) {
	c := DefaultCatalog(PolicyData, slog.Default())
	for _, f := range c.Fields() {
		assert.Equal(t, PolicyData, f.Policy, f.Key)
	}
	assert.Equal(t, PolicyFixed, DefaultCatalog("", slog.Default()).Fields()[0].Policy)
}

func TestField_FormatValue(t *testing.T) {
	c := DefaultCatalog(PolicyFixed, slog.Default())
	tests := []struct {
		field    string
		v        float64
		expected string
	}{
		{"tmax", 0, "32°F"},
		{"tmax", 300, "86°F"},
		{"tmin", -240, "-11°F"},
		{"prcp", 125, "12.5 mm"},
		{"snow", 40, "40 mm"},
		{"fire_prob", 0.42, "42%"},
		{"awnd", 55, "5.5 m/s"},
		{"elev", 1523.4, "1523 m"},
		{"fire_count", 3, "3"},
		{"prcp", math.NaN(), NoData},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			f, err := c.Lookup(tt.field)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, f.FormatValue(tt.v))
		})
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("FIXED")
	require.NoError(t, err)
	assert.Equal(t, PolicyFixed, p)

	p, err = ParsePolicy(" data ")
	require.NoError(t, err)
	assert.Equal(t, PolicyData, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, Policy(""), p)

	_, err = ParsePolicy("quantile")
	require.Error(t, err)
}

func TestLoadCatalog_AppliesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fields.toml")
	content := `
[fields.tmax]
label = "Daily High"
min = -300
max = 450
colormap = "RdYlGn_r"
policy = "data"
aliases = ["high"]

[fields.humidity]
label = "Relative Humidity"
max = 100
format = "count"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := LoadCatalog(path, PolicyFixed, slog.Default())
	require.NoError(t, err)

	tmax, err := c.Lookup("high")
	require.NoError(t, err)
	assert.Equal(t, "Daily High", tmax.Label)
	assert.Equal(t, -300.0, tmax.Min)
	assert.Equal(t, 450.0, tmax.Max)
	assert.Equal(t, "RdYlGn_r", tmax.Colormap)
	assert.Equal(t, PolicyData, tmax.Policy)

	hum, err := c.Lookup("humidity")
	require.NoError(t, err)
	assert.Equal(t, 100.0, hum.Max)
	assert.Equal(t, "viridis", hum.Colormap)
	assert.Equal(t, "55", hum.FormatValue(55))

	last := c.Fields()[len(c.Fields())-1]
	assert.Equal(t, "humidity", last.Key)
}

func TestLoadCatalog_RejectsBadOverrides(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad colormap", "[fields.tmax]\ncolormap = \"rainbow\"\n"},
		{"bad format", "[fields.tmax]\nformat = \"kelvin\"\n"},
		{"inverted range", "[fields.prcp]\nmin = 10\nmax = 5\n"},
		{"bad policy", "[fields.prcp]\npolicy = \"quantile\"\n"},
		{"bad toml", "[fields.prcp\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "fields.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			_, err := LoadCatalog(path, PolicyFixed, slog.Default())
			require.Error(t, err)
		})
	}
}

func TestLoadCatalog_EmptyPathReturnsDefaults(t *testing.T) {
	c, err := LoadCatalog("", PolicyFixed, slog.Default())
	require.NoError(t, err)
	assert.Len(t, c.Fields(), len(defaultFields()))
}
