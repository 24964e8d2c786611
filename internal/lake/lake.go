// Package lake owns the on-disk layout of the datalake: raw downloads, cleaned
// tables, and curated hex tables.
package lake

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Subdirectories created by Init, relative to the root.
var layout = []string{
	"raw",
	"raw/ghcnd",
	"raw/ghcnd/daily",
	"raw/fire_occurrence_point",
	"raw/fire_perimeter",
	"metadata",
	"clean",
	"clean/ghcnd",
	"clean/ghcnd/daily",
	"clean/fire_occurrence_point",
	"clean/fire_perimeter",
	"curated",
	"curated/hexes",
}

// Lake resolves dataset paths under a root directory.
type Lake struct {
	root string
}

// New returns a Lake rooted at root. It does not touch the filesystem.
func New(root string) *Lake {
	return &Lake{root: root}
}

// Root returns the lake root directory.
func (l *Lake) Root() string { return l.root }

// Init creates any missing directories of the layout. Existing directories are
// left alone.
func (l *Lake) Init(logger *slog.Logger) error {
	for _, rel := range layout {
		path := filepath.Join(l.root, rel)
		if _, err := os.Stat(path); err == nil {
			logger.Debug("lake directory exists", "path", rel)
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create lake directory %s: %w", rel, err)
		}
		logger.Info("lake directory created", "path", rel)
	}
	return nil
}

// RawStations is the downloaded ghcnd-stations.txt.
func (l *Lake) RawStations() string {
	return filepath.Join(l.root, "raw", "ghcnd", "stations.txt")
}

// RawDaily is the downloaded yearly daily archive.
func (l *Lake) RawDaily(year int) string {
	return filepath.Join(l.root, "raw", "ghcnd", "daily", fmt.Sprintf("%d.csv.gz", year))
}

// Readme is the downloaded GHCN-D documentation page.
func (l *Lake) Readme() string {
	return filepath.Join(l.root, "metadata", "ghcnd_readme.html")
}

// RawFirePointsDir holds fire occurrence point GeoJSON files.
func (l *Lake) RawFirePointsDir() string {
	return filepath.Join(l.root, "raw", "fire_occurrence_point")
}

// RawPerimetersDir holds fire perimeter GeoJSON files.
func (l *Lake) RawPerimetersDir() string {
	return filepath.Join(l.root, "raw", "fire_perimeter")
}

// CleanStations is the cleaned station table.
func (l *Lake) CleanStations() string {
	return filepath.Join(l.root, "clean", "ghcnd", "stations.parquet")
}

// CleanDaily is the cleaned wide station-day table for a year.
func (l *Lake) CleanDaily(year int) string {
	return filepath.Join(l.root, "clean", "ghcnd", "daily", fmt.Sprintf("%d.parquet", year))
}

// CleanFirePoints is the cleaned fire occurrence point table.
func (l *Lake) CleanFirePoints() string {
	return filepath.Join(l.root, "clean", "fire_occurrence_point", "points.parquet")
}

// CleanPerimeters is the repaired fire perimeter table.
func (l *Lake) CleanPerimeters() string {
	return filepath.Join(l.root, "clean", "fire_perimeter", "perimeters.parquet")
}

// CuratedHexes is the curated hex table for a year.
func (l *Lake) CuratedHexes(year int) string {
	return filepath.Join(l.root, "curated", "hexes", fmt.Sprintf("%d.parquet", year))
}

// CuratedShapefile is the shapefile export of the hex table for a year.
func (l *Lake) CuratedShapefile(year int) string {
	return filepath.Join(l.root, "curated", "hexes", fmt.Sprintf("%d.shp", year))
}

// CuratedYears lists the years that have a curated hex table, ascending.
func (l *Lake) CuratedYears() ([]int, error) {
	entries, err := os.ReadDir(filepath.Join(l.root, "curated", "hexes"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list curated hexes: %w", err)
	}
	var years []int
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".parquet")
		if e.IsDir() || !ok {
			continue
		}
		if y, err := strconv.Atoi(name); err == nil {
			years = append(years, y)
		}
	}
	sort.Ints(years)
	return years, nil
}
