// Command genmock writes a synthetic raw zone into a datalake: a GHCN-D
// station inventory, yearly gzipped daily files, USFS-style fire point and
// perimeter GeoJSON, and a predictions table. The output is deterministic for
// a given seed, so the whole pipeline can run offline.
//
// Usage:
//
//	go run ./cmd/genmock -lake lake -start-year 2020 -end-year 2021 -stations 40
package main

import (
	"compress/gzip"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	h3 "github.com/uber/h3-go/v3"

	"github.com/couchcryptid/wildfire-hex-etl/internal/adapter/geojson"
	"github.com/couchcryptid/wildfire-hex-etl/internal/adapter/parquet"
	"github.com/couchcryptid/wildfire-hex-etl/internal/domain"
	"github.com/couchcryptid/wildfire-hex-etl/internal/hexgrid"
	"github.com/couchcryptid/wildfire-hex-etl/internal/lake"
)

// dailyRow is one headerless row of a by_year daily file.
type dailyRow struct {
	StationID string `csv:"station_id"`
	Date      string `csv:"date"`
	Element   string `csv:"element"`
	Value     string `csv:"value"`
	MFlag     string `csv:"m_flag"`
	QFlag     string `csv:"q_flag"`
	SFlag     string `csv:"s_flag"`
	ObsTime   string `csv:"obs_time"`
}

type mockStation struct {
	id   string
	lat  float64
	lon  float64
	elev float64
	cell string
}

type generator struct {
	rng      *rand.Rand
	lake     *lake.Lake
	grid     *hexgrid.Grid
	stations []mockStation
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	root := flag.String("lake", "lake", "datalake root to write into")
	startYear := flag.Int("start-year", 2021, "first year to generate")
	endYear := flag.Int("end-year", 2021, "last year to generate")
	stationCount := flag.Int("stations", 40, "number of stations")
	ringSize := flag.Int("ring-size", 6, "hex disk radius in cells")
	resolution := flag.Int("resolution", 4, "H3 resolution")
	lat := flag.Float64("lat", 40, "grid center latitude")
	lon := flag.Float64("lon", -95, "grid center longitude")
	seed := flag.Uint64("seed", 42, "random seed")
	predictions := flag.String("predictions", "", "output path for a predictions parquet (default: <lake>/raw/predictions.parquet)")
	flag.Parse()

	if *startYear > *endYear {
		return fmt.Errorf("start year %d is after end year %d", *startYear, *endYear)
	}
	grid, err := hexgrid.New(hexgrid.Center{Lat: *lat, Lon: *lon}, *resolution, *ringSize)
	if err != nil {
		return err
	}

	l := lake.New(*root)
	if err := l.Init(slog.Default()); err != nil {
		return err
	}
	g := &generator{rng: rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15)), lake: l, grid: grid}
	g.placeStations(*stationCount)

	if err := g.writeStations(); err != nil {
		return fmt.Errorf("writing stations: %w", err)
	}
	log.Printf("stations: %d -> %s", len(g.stations), l.RawStations())

	var points []domain.FirePoint
	var preds []domain.Prediction
	for year := *startYear; year <= *endYear; year++ {
		rows, err := g.writeDaily(year)
		if err != nil {
			return fmt.Errorf("writing daily %d: %w", year, err)
		}
		log.Printf("daily %d: %d rows -> %s", year, rows, l.RawDaily(year))
		points = append(points, g.firePoints(year)...)
		preds = append(preds, g.predictions(year)...)
	}

	if err := g.writeFirePoints(points); err != nil {
		return fmt.Errorf("writing fire points: %w", err)
	}
	log.Printf("fire points: %d", len(points))
	n, err := g.writePerimeters(points)
	if err != nil {
		return fmt.Errorf("writing perimeters: %w", err)
	}
	log.Printf("fire perimeters: %d", n)

	predPath := *predictions
	if predPath == "" {
		predPath = filepath.Join(l.Root(), "raw", "predictions.parquet")
	}
	if err := parquet.Write(predPath, preds); err != nil {
		return fmt.Errorf("writing predictions: %w", err)
	}
	log.Printf("predictions: %d -> %s (set PREDICTIONS_PATH to use them)", len(preds), predPath)
	return nil
}

// placeStations drops stations near randomly chosen cell centers.
func (g *generator) placeStations(n int) {
	ids := g.grid.IDs()
	for i := range n {
		cellID := ids[g.rng.IntN(len(ids))]
		cell, _ := g.grid.Cell(cellID)
		c := h3.ToGeo(cell.Index)
		elev := math.Round(200 + g.rng.Float64()*2500)
		if i%9 == 0 {
			elev = domain.MissingElevation
		}
		g.stations = append(g.stations, mockStation{
			id:   fmt.Sprintf("USM%08d", i+1),
			lat:  c.Latitude + (g.rng.Float64()-0.5)*0.02,
			lon:  c.Longitude + (g.rng.Float64()-0.5)*0.02,
			elev: elev,
			cell: cellID,
		})
	}
}

// writeStations writes the fixed-width inventory, plus one station outside
// the kept country prefixes.
func (g *generator) writeStations() error {
	var b strings.Builder
	for i, s := range g.stations {
		fmt.Fprintf(&b, "%-11s %8.4f %9.4f %6.1f %-2s %-30s\n", s.id, s.lat, s.lon, s.elev, "KS", fmt.Sprintf("MOCK STATION %d", i+1))
	}
	fmt.Fprintf(&b, "%-11s %8.4f %9.4f %6.1f %-2s %-30s\n", "FRM00007150", 48.9667, 2.4500, 52.0, "", "PARIS LE BOURGET")
	return writeFile(g.lake.RawStations(), []byte(b.String()))
}

// writeDaily writes one year of seasonal observations for every station.
// Some values are withheld so the element outer join has gaps.
func (g *generator) writeDaily(year int) (int, error) {
	var rows []dailyRow
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	for d := start; d.Year() == year; d = d.AddDate(0, 0, 1) {
		season := math.Sin(2 * math.Pi * float64(d.YearDay()-100) / 365)
		date := d.Format("20060102")
		for _, s := range g.stations {
			tmax := 180 + 150*season + g.rng.NormFloat64()*30
			values := map[domain.Element]float64{
				domain.ElementTMAX: tmax,
				domain.ElementTMIN: tmax - 100 - g.rng.Float64()*40,
				domain.ElementPRCP: math.Max(0, g.rng.NormFloat64()*60),
				domain.ElementAWND: 20 + g.rng.Float64()*60,
			}
			if season < -0.3 {
				values[domain.ElementSNOW] = math.Max(0, g.rng.NormFloat64()*40)
				values[domain.ElementSNWD] = math.Max(0, 100*-season+g.rng.NormFloat64()*20)
			}
			for _, e := range domain.AllElements {
				v, ok := values[e]
				if !ok || g.rng.Float64() < 0.05 {
					continue
				}
				rows = append(rows, dailyRow{StationID: s.id, Date: date, Element: string(e), Value: fmt.Sprintf("%.0f", v), SFlag: "7"})
			}
		}
	}

	path := g.lake.RawDaily(year)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	zw := gzip.NewWriter(f)
	if err := gocsv.MarshalWithoutHeaders(rows, zw); err != nil {
		return 0, err
	}
	if err := zw.Close(); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// firePoints places fires in the warm months, favoring dry stations' cells.
func (g *generator) firePoints(year int) []domain.FirePoint {
	var points []domain.FirePoint
	for i := range 25 + g.rng.IntN(25) {
		s := g.stations[g.rng.IntN(len(g.stations))]
		day := time.Date(year, time.June, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, g.rng.IntN(120))
		points = append(points, domain.FirePoint{
			ID:            fmt.Sprintf("%d-%04d", year, i+1),
			Name:          fmt.Sprintf("MOCK FIRE %d", i+1),
			Lat:           s.lat + (g.rng.Float64()-0.5)*0.05,
			Lon:           s.lon + (g.rng.Float64()-0.5)*0.05,
			DiscoveryDate: day,
		})
	}
	return points
}

func (g *generator) writeFirePoints(points []domain.FirePoint) error {
	features := make([]geojson.Feature, 0, len(points))
	for _, p := range points {
		f, err := geojson.PointFeature(p.ID, p.Lon, p.Lat, map[string]any{
			"FIREOCCURID":   p.ID,
			"FIRENAME":      p.Name,
			"DISCOVERYDATE": p.DiscoveryDate.Format("2006/01/02"),
			"LATDD83":       p.Lat,
			"LONGDD83":      p.Lon,
		})
		if err != nil {
			return err
		}
		features = append(features, f)
	}
	return writeJSON(filepath.Join(g.lake.RawFirePointsDir(), "fire_occurrence_points.geojson"), geojson.NewFeatureCollection(features))
}

// writePerimeters draws a perimeter around every fourth fire: its cell's
// boundary shrunk toward the fire.
func (g *generator) writePerimeters(points []domain.FirePoint) (int, error) {
	var features []geojson.Feature
	for i, p := range points {
		if i%4 != 0 {
			continue
		}
		cellID, ok := g.grid.AssignPoint(p.Lat, p.Lon)
		if !ok {
			continue
		}
		boundary, err := g.grid.Boundary(cellID)
		if err != nil {
			return 0, err
		}
		ring := make([][2]float64, len(boundary))
		for j, v := range boundary {
			ring[j] = [2]float64{p.Lon + (v[0]-p.Lon)*0.4, p.Lat + (v[1]-p.Lat)*0.4}
		}
		f, err := geojson.PolygonFeature(p.ID, ring, map[string]any{
			"UNIQFIREID":    p.ID,
			"INCIDENTNAME":  p.Name,
			"DISCOVERYDATE": p.DiscoveryDate.UnixMilli(),
		})
		if err != nil {
			return 0, err
		}
		features = append(features, f)
	}
	path := filepath.Join(g.lake.RawPerimetersDir(), "fire_perimeters.geojson")
	return len(features), writeJSON(path, geojson.NewFeatureCollection(features))
}

// predictions emits a probability for every station cell on the first of
// each month.
func (g *generator) predictions(year int) []domain.Prediction {
	seen := make(map[string]bool)
	var preds []domain.Prediction
	for _, s := range g.stations {
		if seen[s.cell] {
			continue
		}
		seen[s.cell] = true
		for month := 1; month <= 12; month++ {
			warm := math.Max(0, math.Sin(math.Pi*float64(month-3)/8))
			preds = append(preds, domain.Prediction{
				HexID:       s.cell,
				Year:        int32(year),
				Month:       int32(month),
				Day:         1,
				Probability: math.Min(1, warm*0.8+g.rng.Float64()*0.2),
			})
		}
	}
	return preds
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
