package domain

import (
	"math"
	"time"
)

// Station is one row of the GHCN-D station inventory after cleaning.
type Station struct {
	StationID string  `parquet:"station_id" json:"station_id"`
	Latitude  float64 `parquet:"latitude" json:"latitude"`
	Longitude float64 `parquet:"longitude" json:"longitude"`
	Elevation float64 `parquet:"elevation" json:"elevation"`
	Name      string  `parquet:"name" json:"name"`
}

// CountryCode returns the two-letter FIPS prefix of the station ID.
func (s Station) CountryCode() string {
	if len(s.StationID) < 2 {
		return ""
	}
	return s.StationID[:2]
}

// MissingElevation is the GHCN-D sentinel for an unknown station elevation.
const MissingElevation = -999.9

// HasElevation reports whether the station carries a real elevation value.
func (s Station) HasElevation() bool {
	return math.Abs(s.Elevation-MissingElevation) > 1e-6
}

// Element is a GHCN-D element code.
type Element string

const (
	ElementPRCP Element = "PRCP"
	ElementSNOW Element = "SNOW"
	ElementSNWD Element = "SNWD"
	ElementTMAX Element = "TMAX"
	ElementTMIN Element = "TMIN"
	ElementAWND Element = "AWND"
)

// AllElements lists the elements carried through the pipeline, in column order.
var AllElements = []Element{ElementPRCP, ElementSNOW, ElementSNWD, ElementTMAX, ElementTMIN, ElementAWND}

// ParseElement returns the element for a code, or false if it is not one the
// pipeline keeps.
func ParseElement(code string) (Element, bool) {
	e := Element(code)
	for _, known := range AllElements {
		if e == known {
			return e, true
		}
	}
	return "", false
}

// DailyObservation is one long-format row of a yearly GHCN-D file.
type DailyObservation struct {
	StationID string
	Date      time.Time
	Element   Element
	Value     float64
}

// StationDay is the wide form of a station's observations on one date: one
// nullable column per element, joined with the station's location.
type StationDay struct {
	StationID string   `parquet:"station_id" json:"station_id"`
	Year      int32    `parquet:"year" json:"year"`
	Month     int32    `parquet:"month" json:"month"`
	Day       int32    `parquet:"day" json:"day"`
	PRCP      *float64 `parquet:"prcp,optional" json:"prcp,omitempty"`
	SNOW      *float64 `parquet:"snow,optional" json:"snow,omitempty"`
	SNWD      *float64 `parquet:"snwd,optional" json:"snwd,omitempty"`
	TMAX      *float64 `parquet:"tmax,optional" json:"tmax,omitempty"`
	TMIN      *float64 `parquet:"tmin,optional" json:"tmin,omitempty"`
	AWND      *float64 `parquet:"awnd,optional" json:"awnd,omitempty"`
	Latitude  float64  `parquet:"latitude" json:"latitude"`
	Longitude float64  `parquet:"longitude" json:"longitude"`
	Elevation float64  `parquet:"elevation" json:"elevation"`
}

// Date returns the observation date at midnight UTC.
func (d StationDay) Date() time.Time {
	return time.Date(int(d.Year), time.Month(d.Month), int(d.Day), 0, 0, 0, 0, time.UTC)
}

// Set stores v in the column for e. Unknown elements are ignored.
func (d *StationDay) Set(e Element, v float64) {
	if p := d.slot(e); p != nil {
		*p = &v
	}
}

// Get returns the value for e, or nil when the station did not report it.
func (d *StationDay) Get(e Element) *float64 {
	if p := d.slot(e); p != nil {
		return *p
	}
	return nil
}

func (d *StationDay) slot(e Element) **float64 {
	switch e {
	case ElementPRCP:
		return &d.PRCP
	case ElementSNOW:
		return &d.SNOW
	case ElementSNWD:
		return &d.SNWD
	case ElementTMAX:
		return &d.TMAX
	case ElementTMIN:
		return &d.TMIN
	case ElementAWND:
		return &d.AWND
	default:
		return nil
	}
}

// HasElevation reports whether the joined station elevation is a real value.
func (d StationDay) HasElevation() bool {
	return math.Abs(d.Elevation-MissingElevation) > 1e-6
}
