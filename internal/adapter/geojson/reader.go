package geojson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ctessum/geom"
	gjson "github.com/ctessum/geom/encoding/geojson"

	"github.com/couchcryptid/wildfire-hex-etl/internal/domain"
)

// Property names tried in order when reading USFS feature layers.
var (
	idKeys   = []string{"FIREOCCURID", "UNIQFIREID", "GLOBALID", "OBJECTID"}
	nameKeys = []string{"FIRENAME", "INCIDENTNAME"}
	dateKeys = []string{"DISCOVERYDATETIME", "DISCOVERYDATE", "FIREDISCOVERYDATETIME", "PERIMETERDATETIME"}
)

var dateLayouts = []string{
	time.RFC3339,
	"2006/01/02 15:04:05-07",
	"2006/01/02 15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	time.DateOnly,
}

type rawCollection struct {
	Type     string       `json:"type"`
	Features []rawFeature `json:"features"`
}

// rawFeature accepts both string and numeric feature ids.
type rawFeature struct {
	ID         any             `json:"id"`
	Geometry   *gjson.Geometry `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// PointResult holds decoded fire points and the count of features skipped for
// a missing date or location.
type PointResult struct {
	Points  []domain.FirePoint
	Skipped int
}

// PerimeterResult holds decoded perimeters. Repaired counts geometries that
// needed fixing; Emptied counts those replaced by an empty polygon.
type PerimeterResult struct {
	Perimeters []domain.FirePerimeter
	Skipped    int
	Repaired   int
	Emptied    int
}

func decodeCollection(r io.Reader) (rawCollection, error) {
	var fc rawCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return fc, fmt.Errorf("decode geojson: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return fc, fmt.Errorf("decode geojson: unexpected type %q", fc.Type)
	}
	return fc, nil
}

// ReadFirePoints decodes a USFS fire occurrence point layer.
func ReadFirePoints(r io.Reader, logger *slog.Logger) (PointResult, error) {
	fc, err := decodeCollection(r)
	if err != nil {
		return PointResult{}, err
	}
	var res PointResult
	for i, f := range fc.Features {
		date, ok := featureDate(f.Properties)
		if !ok {
			res.Skipped++
			continue
		}
		lon, lat, ok := pointCoords(f)
		if !ok {
			logger.Debug("fire point without usable location", "index", i)
			res.Skipped++
			continue
		}
		res.Points = append(res.Points, domain.FirePoint{
			ID:            featureID(f, i),
			Name:          stringProp(f.Properties, nameKeys),
			Lat:           lat,
			Lon:           lon,
			DiscoveryDate: date,
		})
	}
	return res, nil
}

// ReadFirePerimeters decodes a USFS fire perimeter layer, repairing each
// geometry. A geometry that cannot be repaired is kept as an empty polygon
// and logged.
func ReadFirePerimeters(r io.Reader, logger *slog.Logger) (PerimeterResult, error) {
	fc, err := decodeCollection(r)
	if err != nil {
		return PerimeterResult{}, err
	}
	var res PerimeterResult
	for i, f := range fc.Features {
		date, ok := featureDate(f.Properties)
		if !ok {
			res.Skipped++
			continue
		}
		id := featureID(f, i)
		poly, changed, err := perimeterPolygon(f.Geometry)
		switch {
		case err != nil:
			logger.Warn("replacing invalid perimeter geometry with empty polygon", "id", id, "error", err)
			poly = geom.Polygon{}
			res.Emptied++
		case changed:
			res.Repaired++
		}
		res.Perimeters = append(res.Perimeters, domain.FirePerimeter{
			ID:            id,
			Name:          stringProp(f.Properties, nameKeys),
			DiscoveryDate: date,
			Polygon:       poly,
		})
	}
	return res, nil
}

func perimeterPolygon(g *gjson.Geometry) (geom.Polygon, bool, error) {
	decoded, flattened, err := decodeGeometry(g)
	if err != nil {
		return nil, true, err
	}
	var (
		poly    geom.Polygon
		changed bool
	)
	switch v := decoded.(type) {
	case geom.Polygon:
		poly, changed, err = RepairPolygon(v)
	case geom.MultiPolygon:
		poly, changed, err = RepairMultiPolygon(v)
	default:
		return nil, true, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
	return poly, changed || flattened, err
}

// decodeGeometry converts a GeoJSON geometry, dropping any Z values first.
// flattened reports whether Z values were present.
func decodeGeometry(g *gjson.Geometry) (geom.Geom, bool, error) {
	if g == nil {
		return nil, true, errors.New("missing geometry")
	}
	coords, flattened := dropZ(g.Coordinates)
	decoded, err := gjson.FromGeoJSON(&gjson.Geometry{Type: g.Type, Coordinates: coords})
	if err != nil {
		return nil, true, fmt.Errorf("%s geometry: %w", g.Type, err)
	}
	return decoded, flattened, nil
}

// dropZ trims every position in a decoded coordinates tree to [x, y].
func dropZ(v any) (any, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return v, false
	}
	if _, isNum := arr[0].(float64); isNum {
		if len(arr) > 2 {
			return arr[:2], true
		}
		return arr, false
	}
	out := make([]any, len(arr))
	changed := false
	for i, e := range arr {
		var c bool
		out[i], c = dropZ(e)
		changed = changed || c
	}
	return out, changed
}

func pointCoords(f rawFeature) (float64, float64, bool) {
	if f.Geometry != nil && f.Geometry.Type == "Point" {
		if g, _, err := decodeGeometry(f.Geometry); err == nil {
			if p, ok := g.(geom.Point); ok && validCoord(p.X, p.Y) {
				return p.X, p.Y, true
			}
		}
	}
	lat, okLat := numberProp(f.Properties, "LATDD83")
	lon, okLon := numberProp(f.Properties, "LONGDD83")
	if okLat && okLon && validCoord(lon, lat) {
		return lon, lat, true
	}
	return 0, 0, false
}

func featureID(f rawFeature, index int) string {
	switch v := f.ID.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	if s := stringProp(f.Properties, idKeys); s != "" {
		return s
	}
	return strconv.Itoa(index)
}

func stringProp(props map[string]any, keys []string) string {
	for _, k := range keys {
		switch v := props[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func numberProp(props map[string]any, key string) (float64, bool) {
	switch v := props[key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// featureDate reads the discovery date as a UTC calendar date. ArcGIS exports
// carry either epoch milliseconds or a formatted string.
func featureDate(props map[string]any) (time.Time, bool) {
	for _, k := range dateKeys {
		switch v := props[k].(type) {
		case float64:
			return truncateDay(time.UnixMilli(int64(v))), true
		case string:
			if t, ok := parseDate(v); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), true
		}
	}
	return time.Time{}, false
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
