package ghcnd

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/couchcryptid/wildfire-hex-etl/internal/domain"
)

// column is a half-open byte range of a fixed-width line.
type column struct{ start, end int }

var (
	colID        = column{0, 11}
	colLatitude  = column{12, 20}
	colLongitude = column{21, 30}
	colElevation = column{31, 37}
	colName      = column{41, 71}
)

func (c column) slice(line string) string {
	if c.start >= len(line) {
		return ""
	}
	end := min(c.end, len(line))
	return strings.TrimSpace(line[c.start:end])
}

// StationParseResult carries parsed stations and the count of lines skipped as
// malformed.
type StationParseResult struct {
	Stations []domain.Station
	Skipped  int
}

// ParseStations reads a ghcnd-stations.txt stream. Lines without an ID or with
// unparsable coordinates are skipped and counted; a missing elevation becomes
// domain.MissingElevation.
func ParseStations(r io.Reader) (StationParseResult, error) {
	var res StationParseResult
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 256), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		st, err := parseStationLine(line)
		if err != nil {
			res.Skipped++
			continue
		}
		res.Stations = append(res.Stations, st)
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("read stations: %w", err)
	}
	return res, nil
}

func parseStationLine(line string) (domain.Station, error) {
	id := colID.slice(line)
	if id == "" {
		return domain.Station{}, fmt.Errorf("missing station id")
	}
	lat, err := strconv.ParseFloat(colLatitude.slice(line), 64)
	if err != nil {
		return domain.Station{}, fmt.Errorf("station %s latitude: %w", id, err)
	}
	lon, err := strconv.ParseFloat(colLongitude.slice(line), 64)
	if err != nil {
		return domain.Station{}, fmt.Errorf("station %s longitude: %w", id, err)
	}
	elev := domain.MissingElevation
	if s := colElevation.slice(line); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			elev = v
		}
	}
	return domain.Station{
		StationID: id,
		Latitude:  lat,
		Longitude: lon,
		Elevation: elev,
		Name:      colName.slice(line),
	}, nil
}

// FilterByPrefix keeps stations whose ID starts with one of the country
// prefixes. An empty prefix list keeps everything.
func FilterByPrefix(stations []domain.Station, prefixes []string) []domain.Station {
	if len(prefixes) == 0 {
		return stations
	}
	out := make([]domain.Station, 0, len(stations))
	for _, s := range stations {
		for _, p := range prefixes {
			if strings.HasPrefix(s.StationID, p) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// Index maps station IDs to stations.
func Index(stations []domain.Station) map[string]domain.Station {
	m := make(map[string]domain.Station, len(stations))
	for _, s := range stations {
		m[s.StationID] = s
	}
	return m
}
