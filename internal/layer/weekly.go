package layer

import (
	"context"
	"sort"
	"time"
)

// WeekCount is the number of fires discovered in the week starting Week.
type WeekCount struct {
	Week  string `json:"week"`
	Count int    `json:"fire_count"`
}

// WeekStart returns the Monday of the week containing t, at midnight UTC.
func WeekStart(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// WeeklyFires counts cleaned fire points by discovery week. Weeks run Monday
// to Sunday and only weeks with at least one fire are returned, oldest first.
// A zero from or to leaves that side unbounded; both bounds are inclusive days.
func (s *Service) WeeklyFires(ctx context.Context, from, to time.Time) ([]WeekCount, error) {
	points, err := s.source.FirePoints(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[time.Time]int)
	for _, p := range points {
		if p.DiscoveryDate.IsZero() {
			continue
		}
		day := p.DiscoveryDate.Format(time.DateOnly)
		if !from.IsZero() && day < from.Format(time.DateOnly) {
			continue
		}
		if !to.IsZero() && day > to.Format(time.DateOnly) {
			continue
		}
		counts[WeekStart(p.DiscoveryDate)]++
	}

	weeks := make([]time.Time, 0, len(counts))
	for w := range counts {
		weeks = append(weeks, w)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })

	out := make([]WeekCount, len(weeks))
	for i, w := range weeks {
		out[i] = WeekCount{Week: w.Format(time.DateOnly), Count: counts[w]}
	}
	return out, nil
}
