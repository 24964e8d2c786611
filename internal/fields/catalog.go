// Package fields defines the measurement fields rendered on the hex map: their
// labels, physical ranges, colormaps and tick formats, plus the two
// normalization policies used to turn values into colormap positions.
package fields

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/couchcryptid/wildfire-hex-etl/internal/colormap"
	"github.com/couchcryptid/wildfire-hex-etl/internal/domain"
)

// ErrUnknownField is returned when a name matches no field or alias.
var ErrUnknownField = errors.New("unknown field")

// Policy selects where the normalization range comes from.
type Policy string

const (
	// PolicyFixed uses the field's physical range, so colors are comparable across dates.
	PolicyFixed Policy = "fixed"
	// PolicyData uses the min and max of the loaded values, maximizing contrast within one date.
	PolicyData Policy = "data"
)

// ParsePolicy validates a policy name. Empty input returns "" so callers can
// fall back to the field default.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PolicyFixed, PolicyData:
		return p, nil
	default:
		return "", fmt.Errorf("invalid normalization policy %q", s)
	}
}

// Field describes one renderable measurement.
type Field struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Unit     string   `json:"unit"`
	Min      float64  `json:"min"`
	Max      float64  `json:"max"`
	Colormap string   `json:"colormap"`
	Format   string   `json:"format"`
	Policy   Policy   `json:"policy"`
	Aliases  []string `json:"aliases,omitempty"`
}

// FormatValue renders a raw value in display units.
func (f Field) FormatValue(v float64) string {
	return formatWith(f.Format, v)
}

// Range returns the normalization range for values under policy p. An empty
// policy uses the field default. The data policy falls back to the fixed range
// when every value is missing.
func (f Field) Range(values []float64, p Policy) (lo, hi float64) {
	if p == "" {
		p = f.Policy
	}
	if p == PolicyData {
		if lo, hi, ok := DataRange(values); ok {
			return lo, hi
		}
	}
	return f.Min, f.Max
}

// Normalize rescales v with the field's fixed range.
func (f Field) Normalize(v float64) float64 {
	return Normalize(v, f.Min, f.Max)
}

func defaultFields() []Field {
	return []Field{
		{
			Key: domain.FieldFireProbability, Label: "Fire Probability", Unit: "fraction",
			Min: 0, Max: 1, Colormap: "RdYlGn_r", Format: FormatPercent,
			Aliases: []string{"normalized_probabilities", "prob-norm", "prob-norm2", "prob-pred", "fire_probability"},
		},
		{
			Key: domain.FieldPrecipitation, Label: "Precipitation", Unit: "tenths of mm",
			Min: 0, Max: 200, Colormap: "Blues", Format: FormatTenthsMillimeters,
			Aliases: []string{"prcp_avg", "precipitation", "precipitation (3-day average)"},
		},
		{
			Key: domain.FieldTempMax, Label: "Max Temperature", Unit: "tenths of °C",
			Min: -240, Max: 560, Colormap: "hot", Format: FormatTenthsCelsiusToFahrenheit,
			Aliases: []string{"tmax_avg", "t-max", "max_temp", "temperature maximum (3-day average)"},
		},
		{
			Key: domain.FieldTempMin, Label: "Min Temperature", Unit: "tenths of °C",
			Min: -240, Max: 560, Colormap: "cool", Format: FormatTenthsCelsiusToFahrenheit,
			Aliases: []string{"tmin_avg", "t-min", "min_temp", "temperature minimum (3-day average)"},
		},
		{
			Key: domain.FieldSnowfall, Label: "Snowfall", Unit: "mm",
			Min: 0, Max: 200, Colormap: "PuBuGn", Format: FormatMillimeters,
			Aliases: []string{"snow_avg", "snowfall"},
		},
		{
			Key: domain.FieldSnowDepth, Label: "Snow Depth", Unit: "mm",
			Min: 0, Max: 1000, Colormap: "PuBuGn", Format: FormatMillimeters,
			Aliases: []string{"snwd_avg", "snow_depth"},
		},
		{
			Key: domain.FieldWind, Label: "Average Wind Speed", Unit: "tenths of m/s",
			Min: 0, Max: 200, Colormap: "Purples", Format: FormatTenthsMetersPerSecond,
			Aliases: []string{"awnd_avg", "wind"},
		},
		{
			Key: domain.FieldElevation, Label: "Elevation", Unit: "m",
			Min: 0, Max: 4000, Colormap: "YlOrBr", Format: FormatMeters,
			Aliases: []string{"elevation"},
		},
		{
			Key: domain.FieldFireCount, Label: "Fire Occurrences", Unit: "count",
			Min: 0, Max: 10, Colormap: "Reds", Format: FormatCount,
			Aliases: []string{"fire", "fires"},
		},
	}
}

// Catalog resolves field names, including legacy aliases, to field definitions.
type Catalog struct {
	fields        map[string]Field
	aliases       map[string]string
	order         []string
	defaultPolicy Policy
	logger        *slog.Logger
}

// DefaultCatalog returns the built-in field definitions. Every field uses
// defaultPolicy unless overridden.
func DefaultCatalog(defaultPolicy Policy, logger *slog.Logger) *Catalog {
	if defaultPolicy == "" {
		defaultPolicy = PolicyFixed
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{
		fields:        make(map[string]Field),
		aliases:       make(map[string]string),
		defaultPolicy: defaultPolicy,
		logger:        logger,
	}
	for _, f := range defaultFields() {
		f.Policy = defaultPolicy
		c.add(f)
	}
	return c
}

func (c *Catalog) add(f Field) {
	if _, exists := c.fields[f.Key]; !exists {
		c.order = append(c.order, f.Key)
	}
	c.fields[f.Key] = f
	c.aliases[strings.ToLower(f.Key)] = f.Key
	for _, a := range f.Aliases {
		c.aliases[strings.ToLower(a)] = f.Key
	}
}

// fileOverride is one [fields.<key>] table of a FIELDS_FILE.
type fileOverride struct {
	Label    *string  `toml:"label"`
	Unit     *string  `toml:"unit"`
	Min      *float64 `toml:"min"`
	Max      *float64 `toml:"max"`
	Colormap *string  `toml:"colormap"`
	Format   *string  `toml:"format"`
	Policy   *string  `toml:"policy"`
	Aliases  []string `toml:"aliases"`
}

type catalogFile struct {
	Fields map[string]fileOverride `toml:"fields"`
}

// LoadCatalog returns the default catalog with overrides from a TOML file
// applied. An empty path returns the defaults. Tables for unknown keys add new
// fields.
func LoadCatalog(path string, defaultPolicy Policy, logger *slog.Logger) (*Catalog, error) {
	c := DefaultCatalog(defaultPolicy, logger)
	if path == "" {
		return c, nil
	}

	var file catalogFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("decode fields file %s: %w", path, err)
	}

	keys := make([]string, 0, len(file.Fields))
	for k := range file.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		f, ok := c.fields[key]
		if !ok {
			f = Field{Key: key, Label: key, Min: 0, Max: 1, Colormap: colormap.Default, Policy: c.defaultPolicy}
		}
		if err := applyOverride(&f, file.Fields[key]); err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		c.add(f)
	}
	c.logger.Info("field catalog loaded", "path", path, "overrides", len(keys))
	return c, nil
}

func applyOverride(f *Field, o fileOverride) error {
	if o.Label != nil {
		f.Label = *o.Label
	}
	if o.Unit != nil {
		f.Unit = *o.Unit
	}
	if o.Min != nil {
		f.Min = *o.Min
	}
	if o.Max != nil {
		f.Max = *o.Max
	}
	if f.Max <= f.Min {
		return fmt.Errorf("max %g must exceed min %g", f.Max, f.Min)
	}
	if o.Colormap != nil {
		if !colormap.Exists(*o.Colormap) {
			return fmt.Errorf("unknown colormap %q (known: %s, each with a _r variant)", *o.Colormap, strings.Join(colormap.Names(), ", "))
		}
		f.Colormap = *o.Colormap
	}
	if o.Format != nil {
		if !knownFormat(*o.Format) {
			return fmt.Errorf("unknown format %q", *o.Format)
		}
		f.Format = *o.Format
	}
	if o.Policy != nil {
		p, err := ParsePolicy(*o.Policy)
		if err != nil {
			return err
		}
		if p != "" {
			f.Policy = p
		}
	}
	f.Aliases = append(f.Aliases, o.Aliases...)
	return nil
}

// Canonical returns the canonical key for a field name or alias.
func (c *Catalog) Canonical(name string) (string, bool) {
	key, ok := c.aliases[strings.ToLower(strings.TrimSpace(name))]
	return key, ok
}

// Lookup returns the field for a name or alias.
func (c *Catalog) Lookup(name string) (Field, error) {
	key, ok := c.Canonical(name)
	if !ok {
		return Field{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return c.fields[key], nil
}

// Fields returns every field in catalog order.
func (c *Catalog) Fields() []Field {
	out := make([]Field, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.fields[k])
	}
	return out
}
