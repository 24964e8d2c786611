package parquet

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ctessum/geom"

	"github.com/couchcryptid/wildfire-hex-etl/internal/domain"
)

// firePointRow is the stored form of a domain.FirePoint.
type firePointRow struct {
	ID        string  `parquet:"id"`
	Name      string  `parquet:"name"`
	Latitude  float64 `parquet:"latitude"`
	Longitude float64 `parquet:"longitude"`
	Discovery int64   `parquet:"discovery_unix"`
}

// perimeterRow is the stored form of a domain.FirePerimeter. Rings hold the
// polygon as JSON [[[lon,lat],...],...]; an empty array marks a geometry that
// could not be repaired.
type perimeterRow struct {
	ID        string `parquet:"id"`
	Name      string `parquet:"name"`
	Discovery int64  `parquet:"discovery_unix"`
	HexID     string `parquet:"hex_id"`
	Rings     string `parquet:"rings"`
}

// WriteFirePoints writes the cleaned fire occurrence points.
func WriteFirePoints(path string, points []domain.FirePoint) error {
	rows := make([]firePointRow, len(points))
	for i, p := range points {
		rows[i] = firePointRow{
			ID:        p.ID,
			Name:      p.Name,
			Latitude:  p.Lat,
			Longitude: p.Lon,
			Discovery: p.DiscoveryDate.Unix(),
		}
	}
	return Write(path, rows)
}

// ReadFirePoints reads the cleaned fire occurrence points.
func ReadFirePoints(path string) ([]domain.FirePoint, error) {
	rows, err := Read[firePointRow](path)
	if err != nil {
		return nil, err
	}
	out := make([]domain.FirePoint, len(rows))
	for i, r := range rows {
		out[i] = domain.FirePoint{
			ID:            r.ID,
			Name:          r.Name,
			Lat:           r.Latitude,
			Lon:           r.Longitude,
			DiscoveryDate: time.Unix(r.Discovery, 0).UTC(),
		}
	}
	return out, nil
}

// WritePerimeters writes the repaired fire perimeters.
func WritePerimeters(path string, perimeters []domain.FirePerimeter) error {
	rows := make([]perimeterRow, len(perimeters))
	for i, p := range perimeters {
		rings, err := encodeRings(p.Polygon)
		if err != nil {
			return fmt.Errorf("encode perimeter %s: %w", p.ID, err)
		}
		rows[i] = perimeterRow{
			ID:        p.ID,
			Name:      p.Name,
			Discovery: p.DiscoveryDate.Unix(),
			HexID:     p.HexID,
			Rings:     rings,
		}
	}
	return Write(path, rows)
}

// ReadPerimeters reads the repaired fire perimeters.
func ReadPerimeters(path string) ([]domain.FirePerimeter, error) {
	rows, err := Read[perimeterRow](path)
	if err != nil {
		return nil, err
	}
	out := make([]domain.FirePerimeter, len(rows))
	for i, r := range rows {
		poly, err := decodeRings(r.Rings)
		if err != nil {
			return nil, fmt.Errorf("decode perimeter %s: %w", r.ID, err)
		}
		out[i] = domain.FirePerimeter{
			ID:            r.ID,
			Name:          r.Name,
			DiscoveryDate: time.Unix(r.Discovery, 0).UTC(),
			Polygon:       poly,
			HexID:         r.HexID,
		}
	}
	return out, nil
}

func encodeRings(p geom.Polygon) (string, error) {
	rings := make([][][2]float64, 0, len(p))
	for _, path := range p {
		ring := make([][2]float64, len(path))
		for i, pt := range path {
			ring[i] = [2]float64{pt.X, pt.Y}
		}
		rings = append(rings, ring)
	}
	b, err := json.Marshal(rings)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeRings(s string) (geom.Polygon, error) {
	if s == "" {
		return nil, nil
	}
	var rings [][][2]float64
	if err := json.Unmarshal([]byte(s), &rings); err != nil {
		return nil, err
	}
	if len(rings) == 0 {
		return nil, nil
	}
	poly := make(geom.Polygon, len(rings))
	for i, ring := range rings {
		path := make(geom.Path, len(ring))
		for j, c := range ring {
			path[j] = geom.Point{X: c[0], Y: c[1]}
		}
		poly[i] = path
	}
	return poly, nil
}
