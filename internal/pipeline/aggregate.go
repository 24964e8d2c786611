package pipeline

import (
	"math"
	"sort"
	"time"

	"github.com/couchcryptid/wildfire-hex-etl/internal/domain"
	"github.com/couchcryptid/wildfire-hex-etl/internal/hexgrid"
)

// weatherFields are the hex fields fed by station observations.
var weatherFields = []string{
	domain.FieldPrecipitation, domain.FieldSnowfall, domain.FieldSnowDepth,
	domain.FieldTempMax, domain.FieldTempMin, domain.FieldWind,
}

// hexDay keys records by hex and calendar day (Unix seconds at midnight UTC).
type hexDay struct {
	hex string
	day int64
}

func keyOf(hex string, date time.Time) hexDay {
	return hexDay{hex: hex, day: date.Unix()}
}

// mean accumulates a running average.
type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) { m.sum += v; m.n++ }

func (m mean) value() float64 {
	if m.n == 0 {
		return math.NaN()
	}
	return m.sum / float64(m.n)
}

type accumulator struct {
	date      time.Time
	stations  int
	elevation mean
	elements  map[domain.Element]*mean
}

// AggregateStations assigns each station day to its hex and averages every
// element over the stations that reported it. Station days outside the grid
// are dropped; the second return value counts them.
func AggregateStations(days []domain.StationDay, grid *hexgrid.Grid, elements []domain.Element) ([]domain.HexRecord, int) {
	acc := make(map[hexDay]*accumulator)
	outside := 0
	for i := range days {
		d := &days[i]
		hex, ok := grid.AssignPoint(d.Latitude, d.Longitude)
		if !ok {
			outside++
			continue
		}
		k := keyOf(hex, d.Date())
		a, ok := acc[k]
		if !ok {
			a = &accumulator{date: d.Date(), elements: make(map[domain.Element]*mean, len(elements))}
			acc[k] = a
		}
		a.stations++
		if d.HasElevation() {
			a.elevation.add(d.Elevation)
		}
		for _, e := range elements {
			v := d.Get(e)
			if v == nil {
				continue
			}
			m, ok := a.elements[e]
			if !ok {
				m = &mean{}
				a.elements[e] = m
			}
			m.add(*v)
		}
	}

	out := make([]domain.HexRecord, 0, len(acc))
	for k, a := range acc {
		r := domain.HexRecord{
			HexID:        k.hex,
			StationCount: int32(a.stations),
			State:        grid.StateOf(k.hex),
		}
		r.SetDate(a.date)
		r.SetValue(domain.FieldElevation, a.elevation.value())
		for e, m := range a.elements {
			r.SetValue(domain.FieldForElement(e), m.value())
		}
		out = append(out, r)
	}
	sortRecords(out)
	return out, outside
}

// TrailingAverage replaces each weather field with the mean of that field over
// the hex's records in the window ending on the record's date. Days without a
// value do not count. history holds earlier records, such as the end of the
// previous year, that feed the windows but are not returned. A window of one
// day leaves records unchanged.
func TrailingAverage(records, history []domain.HexRecord, window int) []domain.HexRecord {
	if window <= 1 {
		return records
	}
	byKey := make(map[hexDay]domain.HexRecord, len(records)+len(history))
	for _, r := range history {
		byKey[keyOf(r.HexID, r.Date())] = r
	}
	for _, r := range records {
		byKey[keyOf(r.HexID, r.Date())] = r
	}

	out := make([]domain.HexRecord, len(records))
	for i, r := range records {
		avg := r
		for _, field := range weatherFields {
			var m mean
			for k := range window {
				prev, ok := byKey[keyOf(r.HexID, r.Date().AddDate(0, 0, -k))]
				if !ok {
					continue
				}
				if v := prev.Value(field); !math.IsNaN(v) {
					m.add(v)
				}
			}
			avg.SetValue(field, m.value())
		}
		out[i] = avg
	}
	return out
}

// index gives access to records by hex and date, adding empty records on demand.
type index struct {
	grid    *hexgrid.Grid
	records []domain.HexRecord
	pos     map[hexDay]int
}

func newIndex(records []domain.HexRecord, grid *hexgrid.Grid) *index {
	ix := &index{grid: grid, records: records, pos: make(map[hexDay]int, len(records))}
	for i, r := range records {
		ix.pos[keyOf(r.HexID, r.Date())] = i
	}
	return ix
}

func (ix *index) get(hex string, date time.Time) *domain.HexRecord {
	k := keyOf(hex, date)
	if i, ok := ix.pos[k]; ok {
		return &ix.records[i]
	}
	r := domain.HexRecord{HexID: hex, State: ix.grid.StateOf(hex)}
	r.SetDate(date)
	ix.records = append(ix.records, r)
	ix.pos[k] = len(ix.records) - 1
	return &ix.records[len(ix.records)-1]
}

// CountFires adds each fire point of the year to the record of its hex and
// discovery date, creating the record if needed. Points outside the grid are
// counted in the second return value.
func CountFires(records []domain.HexRecord, points []domain.FirePoint, grid *hexgrid.Grid, year int) ([]domain.HexRecord, int) {
	ix := newIndex(records, grid)
	outside := 0
	for _, p := range points {
		if p.DiscoveryDate.Year() != year {
			continue
		}
		hex, ok := grid.AssignPoint(p.Lat, p.Lon)
		if !ok {
			outside++
			continue
		}
		ix.get(hex, p.DiscoveryDate).FireCount++
	}
	sortRecords(ix.records)
	return ix.records, outside
}

// MarkBurned flags records whose hex intersects a perimeter discovered in the
// same year on or before the record's date. Empty perimeters are ignored.
func MarkBurned(records []domain.HexRecord, perimeters []domain.FirePerimeter, grid *hexgrid.Grid, year int) int {
	// earliest discovery per hex
	first := make(map[string]time.Time)
	for _, p := range perimeters {
		if len(p.Polygon) == 0 || p.DiscoveryDate.Year() != year {
			continue
		}
		for _, hex := range grid.Intersecting(p.Polygon) {
			if t, ok := first[hex]; !ok || p.DiscoveryDate.Before(t) {
				first[hex] = p.DiscoveryDate
			}
		}
	}
	marked := 0
	for i := range records {
		t, ok := first[records[i].HexID]
		if ok && !records[i].Date().Before(t) {
			records[i].Burned = true
			marked++
		}
	}
	return marked
}

// ApplyPredictions sets the fire probability from model output rows of the
// year, creating records for hex-days not seen yet. Rows for hexes outside the
// grid are counted in the second return value.
func ApplyPredictions(records []domain.HexRecord, preds []domain.Prediction, grid *hexgrid.Grid, year int) ([]domain.HexRecord, int) {
	ix := newIndex(records, grid)
	outside := 0
	for _, p := range preds {
		if int(p.Year) != year {
			continue
		}
		if !grid.Contains(p.HexID) {
			outside++
			continue
		}
		date := time.Date(int(p.Year), time.Month(p.Month), int(p.Day), 0, 0, 0, 0, time.UTC)
		ix.get(p.HexID, date).SetValue(domain.FieldFireProbability, p.Probability)
	}
	sortRecords(ix.records)
	return ix.records, outside
}

// sortRecords orders records by date, then hex ID.
func sortRecords(records []domain.HexRecord) {
	sort.Slice(records, func(i, j int) bool {
		di, dj := records[i].Date(), records[j].Date()
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return records[i].HexID < records[j].HexID
	})
}
