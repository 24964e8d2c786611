package render

import (
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/wildfire-hex-etl/internal/adapter/geojson"
	"github.com/couchcryptid/wildfire-hex-etl/internal/domain"
	"github.com/couchcryptid/wildfire-hex-etl/internal/fields"
	"github.com/couchcryptid/wildfire-hex-etl/internal/hexgrid"
)

// Opacity of filled hexagons. No-data hexagons are drawn fully transparent.
const fillOpacity = 0.6

// Overlay is a GeoJSON feature collection with the range that colored it.
type Overlay struct {
	geojson.FeatureCollection
	Field   string        `json:"field"`
	Date    string        `json:"date,omitempty"`
	Policy  fields.Policy `json:"policy"`
	Min     float64       `json:"min"`
	Max     float64       `json:"max"`
	Skipped int           `json:"-"`
}

// Layer renders one polygon feature per record, colored by f normalized under
// policy (empty means the field default). Records whose hex is not in grid are
// skipped and counted in Overlay.Skipped.
func Layer(records []domain.HexRecord, grid *hexgrid.Grid, f fields.Field, policy fields.Policy) (Overlay, error) {
	if policy == "" {
		policy = f.Policy
	}
	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = r.Value(f.Key)
	}
	lo, hi := f.Range(values, policy)
	cm := colormapFor(f)

	out := Overlay{Field: f.Key, Policy: policy, Min: lo, Max: hi}
	if len(records) > 0 {
		out.Date = records[0].Date().Format(time.DateOnly)
	}

	features := make([]geojson.Feature, 0, len(records))
	for i, r := range records {
		ring, err := grid.Boundary(r.HexID)
		if err != nil {
			out.Skipped++
			continue
		}
		v := values[i]
		norm := fields.Normalize(v, lo, hi)
		props := map[string]any{
			"hex_id":       r.HexID,
			"state":        r.State,
			"value":        nullable(v),
			"normalized":   nullable(norm),
			"fill_color":   cm.Hex(norm),
			"fill_opacity": fillOpacity,
			"tooltip":      fmt.Sprintf("%s: %s", f.Label, f.FormatValue(v)),
		}
		if math.IsNaN(norm) {
			props["fill_opacity"] = 0.0
		}
		feat, err := geojson.PolygonFeature(r.HexID, ring, props)
		if err != nil {
			return Overlay{}, fmt.Errorf("build feature for %s: %w", r.HexID, err)
		}
		features = append(features, feat)
	}
	out.FeatureCollection = geojson.NewFeatureCollection(features)
	return out, nil
}

// nullable maps NaN to nil so it encodes as JSON null.
func nullable(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}
