package domain

import (
	"math"
	"time"

	"github.com/ctessum/geom"
)

// Canonical field keys of a HexRecord. Older column names are mapped onto
// these by the field catalog.
const (
	FieldFireProbability = "fire_prob"
	FieldPrecipitation   = "prcp"
	FieldSnowfall        = "snow"
	FieldSnowDepth       = "snwd"
	FieldTempMax         = "tmax"
	FieldTempMin         = "tmin"
	FieldWind            = "awnd"
	FieldElevation       = "elev"
	FieldFireCount       = "fire_count"
)

// HexRecord is the curated per-hexagon, per-day row rendered by the dashboard.
type HexRecord struct {
	HexID           string   `parquet:"hex_id" json:"hex_id"`
	Year            int32    `parquet:"year" json:"year"`
	Month           int32    `parquet:"month" json:"month"`
	Day             int32    `parquet:"day" json:"day"`
	State           string   `parquet:"state" json:"state,omitempty"`
	StationCount    int32    `parquet:"station_count" json:"station_count"`
	Precipitation   *float64 `parquet:"prcp,optional" json:"prcp,omitempty"`
	Snowfall        *float64 `parquet:"snow,optional" json:"snow,omitempty"`
	SnowDepth       *float64 `parquet:"snwd,optional" json:"snwd,omitempty"`
	TempMax         *float64 `parquet:"tmax,optional" json:"tmax,omitempty"`
	TempMin         *float64 `parquet:"tmin,optional" json:"tmin,omitempty"`
	Wind            *float64 `parquet:"awnd,optional" json:"awnd,omitempty"`
	Elevation       *float64 `parquet:"elev,optional" json:"elev,omitempty"`
	FireCount       int32    `parquet:"fire_count" json:"fire_count"`
	Burned          bool     `parquet:"burned" json:"burned"`
	FireProbability *float64 `parquet:"fire_prob,optional" json:"fire_prob,omitempty"`
}

// Date returns the record date at midnight UTC.
func (r HexRecord) Date() time.Time {
	return time.Date(int(r.Year), time.Month(r.Month), int(r.Day), 0, 0, 0, 0, time.UTC)
}

// SetDate stores t's calendar date on the record.
func (r *HexRecord) SetDate(t time.Time) {
	r.Year, r.Month, r.Day = int32(t.Year()), int32(t.Month()), int32(t.Day())
}

// Value returns the field's value, or NaN when it is missing or the key is unknown.
func (r HexRecord) Value(field string) float64 {
	if field == FieldFireCount {
		return float64(r.FireCount)
	}
	if p := r.pointer(field); p != nil && *p != nil {
		return **p
	}
	return math.NaN()
}

// SetValue stores v for the field. NaN clears it.
func (r *HexRecord) SetValue(field string, v float64) {
	if field == FieldFireCount {
		if !math.IsNaN(v) {
			r.FireCount = int32(v)
		}
		return
	}
	p := r.pointer(field)
	if p == nil {
		return
	}
	if math.IsNaN(v) {
		*p = nil
		return
	}
	*p = &v
}

// MeasuredFields lists the nullable float fields of a HexRecord.
var MeasuredFields = []string{
	FieldFireProbability, FieldPrecipitation, FieldSnowfall, FieldSnowDepth,
	FieldTempMax, FieldTempMin, FieldWind, FieldElevation,
}

func (r *HexRecord) pointer(field string) **float64 {
	switch field {
	case FieldFireProbability:
		return &r.FireProbability
	case FieldPrecipitation:
		return &r.Precipitation
	case FieldSnowfall:
		return &r.Snowfall
	case FieldSnowDepth:
		return &r.SnowDepth
	case FieldTempMax:
		return &r.TempMax
	case FieldTempMin:
		return &r.TempMin
	case FieldWind:
		return &r.Wind
	case FieldElevation:
		return &r.Elevation
	default:
		return nil
	}
}

// FieldForElement maps a GHCN-D element onto the hex record field it feeds.
func FieldForElement(e Element) string {
	switch e {
	case ElementPRCP:
		return FieldPrecipitation
	case ElementSNOW:
		return FieldSnowfall
	case ElementSNWD:
		return FieldSnowDepth
	case ElementTMAX:
		return FieldTempMax
	case ElementTMIN:
		return FieldTempMin
	case ElementAWND:
		return FieldWind
	default:
		return ""
	}
}

// FirePoint is a USFS fire occurrence point.
type FirePoint struct {
	ID            string
	Name          string
	Lat           float64
	Lon           float64
	DiscoveryDate time.Time
}

// FirePerimeter is a USFS fire perimeter polygon. An empty Polygon marks a
// geometry that could not be repaired. HexID is the cell sharing the most area
// with the polygon, empty when it misses the grid.
type FirePerimeter struct {
	ID            string
	Name          string
	DiscoveryDate time.Time
	Polygon       geom.Polygon
	HexID         string
}

// Prediction is one model output row: the fire probability for a hex on a date.
type Prediction struct {
	HexID       string  `parquet:"hex_id"`
	Year        int32   `parquet:"year"`
	Month       int32   `parquet:"month"`
	Day         int32   `parquet:"day"`
	Probability float64 `parquet:"probability"`
}
