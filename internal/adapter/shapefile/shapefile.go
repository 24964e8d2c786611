// Package shapefile reads state boundaries and writes the hex layer as an
// ESRI shapefile.
package shapefile

import (
	"fmt"
	"math"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"

	"github.com/couchcryptid/wildfire-hex-etl/internal/domain"
	"github.com/couchcryptid/wildfire-hex-etl/internal/hexgrid"
)

// NoData is written in place of missing numeric values; DBF has no null.
const NoData = -9999.0

// DefaultNameColumn is the attribute holding the state name in Census
// cartographic boundary files.
const DefaultNameColumn = "NAME"

// ReadStates loads polygon features from path, labeling each with the value of
// nameColumn. Non-polygon shapes are rejected.
func ReadStates(path, nameColumn string) ([]hexgrid.State, error) {
	if nameColumn == "" {
		nameColumn = DefaultNameColumn
	}
	dec, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile %s: %w", path, err)
	}
	defer dec.Close()

	var states []hexgrid.State
	for {
		g, fields, more := dec.DecodeRowFields(nameColumn)
		if !more {
			break
		}
		poly, ok := g.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("shapefile %s: state shapes must be polygons, got %T", path, g)
		}
		name := strings.TrimSpace(strings.ReplaceAll(fields[nameColumn], "\x00", ""))
		states = append(states, hexgrid.State{Polygonal: poly, Name: name})
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("decode shapefile %s: %w", path, err)
	}
	return states, nil
}

// hexRow is the archetype of the exported layer. DBF column names are capped
// at ten characters.
type hexRow struct {
	geom.Polygon
	HexID    string
	Date     string
	State    string
	Stations int
	Prcp     float64
	Snow     float64
	Snwd     float64
	Tmax     float64
	Tmin     float64
	Wind     float64
	Elev     float64
	Fire     int
	Burned   int
	Prob     float64
}

// WriteHexes exports records as hexagon polygons taken from grid. Records whose
// hex is not in the grid are skipped; the count written is returned.
func WriteHexes(path string, grid *hexgrid.Grid, records []domain.HexRecord) (int, error) {
	enc, err := shp.NewEncoder(path, hexRow{})
	if err != nil {
		return 0, fmt.Errorf("create shapefile %s: %w", path, err)
	}

	written := 0
	for _, r := range records {
		cell, err := grid.Cell(r.HexID)
		if err != nil {
			continue
		}
		row := hexRow{
			Polygon:  cell.Polygon,
			HexID:    r.HexID,
			Date:     r.Date().Format("2006-01-02"),
			State:    r.State,
			Stations: int(r.StationCount),
			Prcp:     orNoData(r.Value(domain.FieldPrecipitation)),
			Snow:     orNoData(r.Value(domain.FieldSnowfall)),
			Snwd:     orNoData(r.Value(domain.FieldSnowDepth)),
			Tmax:     orNoData(r.Value(domain.FieldTempMax)),
			Tmin:     orNoData(r.Value(domain.FieldTempMin)),
			Wind:     orNoData(r.Value(domain.FieldWind)),
			Elev:     orNoData(r.Value(domain.FieldElevation)),
			Fire:     int(r.FireCount),
			Prob:     orNoData(r.Value(domain.FieldFireProbability)),
		}
		if r.Burned {
			row.Burned = 1
		}
		if err := enc.Encode(row); err != nil {
			enc.Close()
			return written, fmt.Errorf("encode hex %s: %w", r.HexID, err)
		}
		written++
	}
	enc.Close()
	return written, nil
}

func orNoData(v float64) float64 {
	if math.IsNaN(v) {
		return NoData
	}
	return v
}
