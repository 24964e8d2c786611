package ghcnd

import (
	"sort"
	"time"

	"github.com/couchcryptid/wildfire-hex-etl/internal/domain"
)

type stationDate struct {
	station string
	date    time.Time
}

// Pivot turns long observations into one wide row per station and date. A
// station-date that reported any element gets a row; elements it did not
// report stay nil. When a station reports the same element twice on a date the
// last value wins. Rows are ordered by station then date.
func Pivot(obs []domain.DailyObservation) []domain.StationDay {
	rows := make(map[stationDate]*domain.StationDay)
	for _, o := range obs {
		k := stationDate{o.StationID, o.Date}
		row, ok := rows[k]
		if !ok {
			row = &domain.StationDay{
				StationID: o.StationID,
				Year:      int32(o.Date.Year()),
				Month:     int32(o.Date.Month()),
				Day:       int32(o.Date.Day()),
			}
			rows[k] = row
		}
		row.Set(o.Element, o.Value)
	}

	out := make([]domain.StationDay, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StationID != out[j].StationID {
			return out[i].StationID < out[j].StationID
		}
		return out[i].Date().Before(out[j].Date())
	})
	return out
}

// JoinStations attaches station coordinates and elevation to each row. Rows
// whose station is not in the index are dropped; the second return value
// counts them.
func JoinStations(days []domain.StationDay, stations map[string]domain.Station) ([]domain.StationDay, int) {
	out := make([]domain.StationDay, 0, len(days))
	dropped := 0
	for _, d := range days {
		st, ok := stations[d.StationID]
		if !ok {
			dropped++
			continue
		}
		d.Latitude = st.Latitude
		d.Longitude = st.Longitude
		d.Elevation = st.Elevation
		out = append(out, d)
	}
	return out, dropped
}
