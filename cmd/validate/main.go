// Command validate checks the integrity of a datalake after a pipeline run:
// the directory layout, the cleaned station and daily tables, and the curated
// hex tables against the configured grid and field catalog.
//
// Usage:
//
//	go run ./cmd/validate -lake lake
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/wildfire-hex-etl/internal/adapter/parquet"
	"github.com/couchcryptid/wildfire-hex-etl/internal/config"
	"github.com/couchcryptid/wildfire-hex-etl/internal/domain"
	"github.com/couchcryptid/wildfire-hex-etl/internal/fields"
	"github.com/couchcryptid/wildfire-hex-etl/internal/hexgrid"
	"github.com/couchcryptid/wildfire-hex-etl/internal/lake"
	"github.com/couchcryptid/wildfire-hex-etl/internal/observability"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// maxErrors caps the detail kept per phase.
const maxErrors = 25

func (p *phase) capped() []string {
	if len(p.errors) <= maxErrors {
		return p.errors
	}
	return append(p.errors[:maxErrors:maxErrors], fmt.Sprintf("... and %d more", len(p.errors)-maxErrors))
}

func main() {
	root := flag.String("lake", "", "datalake root (default DATALAKE_ROOT)")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}
	if *root != "" {
		cfg.DatalakeRoot = *root
	}
	os.Exit(run(cfg))
}

func run(cfg *config.Config) int {
	fmt.Println("=== Wildfire Hex Datalake Validation ===")
	fmt.Println()

	l := lake.New(cfg.DatalakeRoot)
	grid, err := hexgrid.New(hexgrid.Center{Lat: cfg.HexCenterLat, Lon: cfg.HexCenterLon}, cfg.HexResolution, cfg.HexRingSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: build grid: %v\n", err)
		return 1
	}
	logger := observability.NewLogger("error", "text")
	catalog, err := fields.LoadCatalog(cfg.FieldsFile, fields.Policy(cfg.NormalizationPolicy), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load field catalog: %v\n", err)
		return 1
	}

	stations, stationPhase := validateStations(l, cfg.StationPrefixes)
	dailyPhase, dailyRows := validateDaily(l, cfg.Years(), stations)
	hexPhase, hexRows := validateHexes(l, grid)
	phases := []*phase{
		validateLayout(l),
		stationPhase,
		dailyPhase,
		hexPhase,
		validateNormalization(l, catalog),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d stations, %d station days, %d hex records over %d cells\n",
		len(stations), dailyRows, hexRows, grid.Len())
	if len(stations) > 0 {
		fmt.Printf("Stations by country: %s\n", countryCounts(stations))
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.capped() {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phases ──

func validateLayout(l *lake.Lake) *phase {
	p := &phase{name: "Phase 1: Datalake layout"}
	for _, dir := range []string{
		l.RawFirePointsDir(),
		l.RawPerimetersDir(),
		filepath.Dir(l.CleanDaily(0)),
		filepath.Dir(l.CuratedHexes(0)),
	} {
		info, err := os.Stat(dir)
		if err != nil {
			p.errorf("%s: %v", dir, err)
			continue
		}
		if !info.IsDir() {
			p.errorf("%s: not a directory", dir)
		}
	}
	return p
}

func validateStations(l *lake.Lake, prefixes []string) (map[string]domain.Station, *phase) {
	p := &phase{name: "Phase 2: Clean station table"}
	rows, err := parquet.ReadStations(l.CleanStations())
	if err != nil {
		p.errorf("%v", err)
		return nil, p
	}
	if len(rows) == 0 {
		p.errorf("station table is empty")
	}

	index := make(map[string]domain.Station, len(rows))
	for _, s := range rows {
		if _, dup := index[s.StationID]; dup {
			p.errorf("duplicate station %s", s.StationID)
		}
		index[s.StationID] = s
		if len(s.StationID) != 11 {
			p.errorf("station %s: id is not 11 characters", s.StationID)
		}
		if s.Latitude < -90 || s.Latitude > 90 || s.Longitude < -180 || s.Longitude > 180 {
			p.errorf("station %s: coordinates (%g, %g) out of range", s.StationID, s.Latitude, s.Longitude)
		}
		if !hasPrefix(s.StationID, prefixes) {
			p.errorf("station %s: not in prefixes %v", s.StationID, prefixes)
		}
	}
	return index, p
}

// countryCounts formats station counts per FIPS country code, sorted by code.
func countryCounts(stations map[string]domain.Station) string {
	counts := make(map[string]int)
	for _, s := range stations {
		counts[s.CountryCode()]++
	}
	codes := make([]string, 0, len(counts))
	for c := range counts {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = fmt.Sprintf("%s=%d", c, counts[c])
	}
	return strings.Join(parts, " ")
}

func validateDaily(l *lake.Lake, years []int, stations map[string]domain.Station) (*phase, int) {
	p := &phase{name: "Phase 3: Clean daily tables"}
	total := 0
	for _, year := range years {
		rows, err := parquet.ReadStationDays(l.CleanDaily(year))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			p.errorf("%d: %v", year, err)
			continue
		}
		total += len(rows)
		seen := make(map[string]bool, len(rows))
		for i := range rows {
			d := &rows[i]
			key := d.StationID + "|" + d.Date().Format("2006-01-02")
			if seen[key] {
				p.errorf("%d: duplicate station day %s", year, key)
			}
			seen[key] = true
			if int(d.Year) != year {
				p.errorf("%d: station day %s in wrong year table", year, key)
			}
			if _, ok := stations[d.StationID]; stations != nil && !ok {
				p.errorf("%d: station day %s has no station", year, key)
			}
			if !hasAnyElement(d) {
				p.errorf("%d: station day %s has no element values", year, key)
			}
		}
	}
	return p, total
}

func validateHexes(l *lake.Lake, grid *hexgrid.Grid) (*phase, int) {
	p := &phase{name: "Phase 4: Curated hex tables"}
	years, err := l.CuratedYears()
	if err != nil {
		p.errorf("%v", err)
		return p, 0
	}
	if len(years) == 0 {
		p.errorf("no curated hex tables")
	}
	total := 0
	for _, year := range years {
		records, err := parquet.ReadHexRecords(l.CuratedHexes(year))
		if err != nil {
			p.errorf("%d: %v", year, err)
			continue
		}
		total += len(records)
		seen := make(map[string]bool, len(records))
		for _, r := range records {
			key := r.HexID + "|" + r.Date().Format("2006-01-02")
			if seen[key] {
				p.errorf("%d: duplicate hex day %s", year, key)
			}
			seen[key] = true
			if !grid.Contains(r.HexID) {
				p.errorf("%d: hex %s is not in the grid", year, r.HexID)
			}
			if int(r.Year) != year {
				p.errorf("%d: hex day %s in wrong year table", year, key)
			}
			if r.StationCount < 0 || r.FireCount < 0 {
				p.errorf("%d: hex day %s has negative counts", year, key)
			}
			for _, f := range domain.MeasuredFields {
				if v := r.Value(f); math.IsInf(v, 0) {
					p.errorf("%d: hex day %s field %s is infinite", year, key, f)
				}
			}
			if v := r.Value(domain.FieldFireProbability); v < 0 || v > 1 {
				p.errorf("%d: hex day %s fire probability %g outside [0,1]", year, key, v)
			}
		}
	}
	return p, total
}

// validateNormalization checks that every catalog field normalizes the latest
// curated year into [0,1] under both policies.
func validateNormalization(l *lake.Lake, catalog *fields.Catalog) *phase {
	p := &phase{name: "Phase 5: Field normalization"}
	years, err := l.CuratedYears()
	if err != nil || len(years) == 0 {
		return p
	}
	latest := years[len(years)-1]
	records, err := parquet.ReadHexRecords(l.CuratedHexes(latest))
	if err != nil {
		p.errorf("%d: %v", latest, err)
		return p
	}
	for _, f := range catalog.Fields() {
		values := make([]float64, len(records))
		for i, r := range records {
			values[i] = r.Value(f.Key)
		}
		for _, policy := range []fields.Policy{fields.PolicyFixed, fields.PolicyData} {
			lo, hi := f.Range(values, policy)
			for _, v := range values {
				n := fields.Normalize(v, lo, hi)
				if !math.IsNaN(v) && (n < 0 || n > 1) {
					p.errorf("%s/%s: %g normalized to %g", f.Key, policy, v, n)
					break
				}
			}
		}
	}
	return p
}

// ── Helpers ──

func hasPrefix(id string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, pre := range prefixes {
		if strings.HasPrefix(id, pre) {
			return true
		}
	}
	return false
}

func hasAnyElement(d *domain.StationDay) bool {
	for _, e := range domain.AllElements {
		if d.Get(e) != nil {
			return true
		}
	}
	return false
}
