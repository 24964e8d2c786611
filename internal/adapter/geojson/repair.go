package geojson

import (
	"errors"
	"math"

	"github.com/ctessum/geom"
	polyclip "github.com/ctessum/polyclip-go"
)

// ErrUnrepairable is returned when no usable ring survives repair.
var ErrUnrepairable = errors.New("geojson: geometry cannot be repaired")

// areaTolerance is the relative area change below which a ring is treated as
// untouched by self-intersection removal.
const areaTolerance = 1e-9

// RepairPolygon cleans one polygon. Each ring has consecutive duplicate
// vertices removed, is closed if open, and is split into simple loops where
// it crosses itself. Loops with zero area are dropped. If the outer ring
// cannot be repaired the whole polygon is unrepairable; a bad hole is only
// dropped. The bool reports whether anything was changed.
func RepairPolygon(poly geom.Polygon) (geom.Polygon, bool, error) {
	var (
		out     geom.Polygon
		changed bool
	)
	for i, ring := range poly {
		loops, fixed := repairRing(ring)
		if len(loops) == 0 {
			if i == 0 {
				return nil, true, ErrUnrepairable
			}
			changed = true
			continue
		}
		changed = changed || fixed
		out = append(out, loops...)
	}
	if len(out) == 0 {
		return nil, true, ErrUnrepairable
	}
	return out, changed, nil
}

// RepairMultiPolygon repairs each member and flattens the survivors into a
// single polygon. Members whose outer ring is unrepairable are dropped.
func RepairMultiPolygon(mp geom.MultiPolygon) (geom.Polygon, bool, error) {
	var (
		out     geom.Polygon
		changed bool
	)
	for _, member := range mp {
		poly, fixed, err := RepairPolygon(member)
		if err != nil {
			changed = true
			continue
		}
		changed = changed || fixed
		out = append(out, poly...)
	}
	if len(out) == 0 {
		return nil, true, ErrUnrepairable
	}
	return out, changed, nil
}

// repairRing returns the simple closed loops making up ring.
func repairRing(ring geom.Path) ([]geom.Path, bool) {
	path, fixed, ok := cleanRing(ring)
	if !ok {
		return nil, true
	}
	loops := simpleLoops(path)
	if len(loops) == 1 && sameArea(loops[0], path) {
		return []geom.Path{path}, fixed
	}
	return loops, true
}

// cleanRing drops duplicate consecutive vertices and closes the ring. ok is
// false for rings with out-of-range coordinates or fewer than three
// distinct vertices.
func cleanRing(raw geom.Path) (geom.Path, bool, bool) {
	fixed := false
	path := make(geom.Path, 0, len(raw)+1)
	for _, p := range raw {
		if !validCoord(p.X, p.Y) {
			return nil, true, false
		}
		if n := len(path); n > 0 && path[n-1] == p {
			fixed = true
			continue
		}
		path = append(path, p)
	}
	if len(path) == 0 {
		return nil, true, false
	}
	if path[0] != path[len(path)-1] {
		path = append(path, path[0])
		fixed = true
	}
	if len(path) < 4 {
		return nil, true, false
	}
	return path, fixed, true
}

// simpleLoops splits a closed ring at its self-intersections using
// polyclip's MakeValid and returns the loops with positive area.
func simpleLoops(path geom.Path) []geom.Path {
	contour := make(polyclip.Contour, 0, len(path)-1)
	for _, p := range path[:len(path)-1] {
		contour = append(contour, polyclip.Point{X: p.X, Y: p.Y})
	}
	var loops []geom.Path
	for _, c := range (polyclip.Polygon{contour}).MakeValid() {
		for _, loop := range splitLoops(c) {
			if len(loop) >= 4 && (geom.Polygon{loop}).Area() > 0 {
				loops = append(loops, loop)
			}
		}
	}
	return loops
}

// splitLoops breaks a contour that revisits a vertex into closed loops, one
// per visit.
func splitLoops(c polyclip.Contour) []geom.Path {
	var (
		loops []geom.Path
		stack geom.Path
	)
	seen := make(map[geom.Point]int, len(c))
	for _, pt := range c {
		p := geom.Point{X: pt.X, Y: pt.Y}
		if j, ok := seen[p]; ok {
			loop := append(geom.Path{}, stack[j:]...)
			loops = append(loops, append(loop, p))
			for _, q := range stack[j+1:] {
				delete(seen, q)
			}
			stack = stack[:j+1]
			continue
		}
		seen[p] = len(stack)
		stack = append(stack, p)
	}
	if len(stack) > 0 {
		loops = append(loops, append(stack, stack[0]))
	}
	return loops
}

func sameArea(a, b geom.Path) bool {
	aa, ab := (geom.Polygon{a}).Area(), (geom.Polygon{b}).Area()
	return math.Abs(aa-ab) <= areaTolerance*math.Max(1, ab)
}

func validCoord(lon, lat float64) bool {
	if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
		return false
	}
	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}
