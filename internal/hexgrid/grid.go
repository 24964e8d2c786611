// Package hexgrid assigns point and polygon records to the cells of a fixed
// H3 disk.
//
// The grid is a k-ring of cells around a center coordinate at one resolution.
// Points are mapped with H3's own point-to-cell function and kept only if the
// resulting cell lies in the disk. Polygons are joined against cell boundaries
// through an R-tree. Coordinates are EPSG:4326 with X = longitude and
// Y = latitude.
package hexgrid

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	h3 "github.com/uber/h3-go/v3"
)

// ErrUnknownCell is returned for cell IDs outside the grid.
var ErrUnknownCell = errors.New("cell not in grid")

// Center is a latitude/longitude pair in decimal degrees.
type Center struct {
	Lat float64
	Lon float64
}

// Cell is one hexagon of the grid.
type Cell struct {
	ID      string
	Index   h3.H3Index
	Polygon geom.Polygon
	State   string
}

// indexed is the R-tree entry for a cell.
type indexed struct {
	geom.Polygon
	cell *Cell
}

// Grid is an immutable set of H3 cells with a spatial index over their
// boundaries. It is safe for concurrent reads.
type Grid struct {
	resolution int
	center     Center
	ringSize   int
	cells      map[h3.H3Index]*Cell
	byID       map[string]*Cell
	ids        []string
	index      *rtree.Rtree
}

// New builds the disk of cells within ringSize steps of the cell containing
// center, at the given H3 resolution.
func New(center Center, resolution, ringSize int) (*Grid, error) {
	if resolution < 0 || resolution > 15 {
		return nil, fmt.Errorf("h3 resolution %d out of range [0,15]", resolution)
	}
	if ringSize < 0 {
		return nil, fmt.Errorf("ring size %d must not be negative", ringSize)
	}
	if center.Lat < -90 || center.Lat > 90 || center.Lon < -180 || center.Lon > 180 {
		return nil, fmt.Errorf("center %v outside EPSG:4326 bounds", center)
	}

	origin := h3.FromGeo(h3.GeoCoord{Latitude: center.Lat, Longitude: center.Lon}, resolution)
	disk := h3.KRing(origin, ringSize)

	g := &Grid{
		resolution: resolution,
		center:     center,
		ringSize:   ringSize,
		cells:      make(map[h3.H3Index]*Cell, len(disk)),
		byID:       make(map[string]*Cell, len(disk)),
		ids:        make([]string, 0, len(disk)),
		index:      rtree.NewTree(25, 50),
	}
	for _, idx := range disk {
		if idx == 0 {
			continue
		}
		c := &Cell{
			ID:      h3.ToString(idx),
			Index:   idx,
			Polygon: cellPolygon(idx),
		}
		g.cells[idx] = c
		g.byID[c.ID] = c
		g.ids = append(g.ids, c.ID)
		g.index.Insert(&indexed{Polygon: c.Polygon, cell: c})
	}
	sort.Strings(g.ids)
	return g, nil
}

// cellPolygon converts an H3 boundary into a closed ring with X = lon, Y = lat.
func cellPolygon(idx h3.H3Index) geom.Polygon {
	boundary := h3.ToGeoBoundary(idx)
	ring := make(geom.Path, 0, len(boundary)+1)
	for _, v := range boundary {
		ring = append(ring, geom.Point{X: v.Longitude, Y: v.Latitude})
	}
	if len(ring) > 0 {
		ring = append(ring, ring[0])
	}
	return geom.Polygon{ring}
}

// Resolution returns the grid's H3 resolution.
func (g *Grid) Resolution() int { return g.resolution }

// Len returns the number of cells.
func (g *Grid) Len() int { return len(g.ids) }

// IDs returns every cell ID in sorted order.
func (g *Grid) IDs() []string {
	out := make([]string, len(g.ids))
	copy(out, g.ids)
	return out
}

// Contains reports whether id is a cell of the grid.
func (g *Grid) Contains(id string) bool {
	_, ok := g.byID[id]
	return ok
}

// Cell returns the cell for id.
func (g *Grid) Cell(id string) (*Cell, error) {
	c, ok := g.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCell, id)
	}
	return c, nil
}

// Boundary returns the closed boundary ring of a cell as [lon, lat] pairs,
// ready for GeoJSON.
func (g *Grid) Boundary(id string) ([][2]float64, error) {
	c, err := g.Cell(id)
	if err != nil {
		return nil, err
	}
	ring := c.Polygon[0]
	out := make([][2]float64, len(ring))
	for i, p := range ring {
		out[i] = [2]float64{p.X, p.Y}
	}
	return out, nil
}

// AssignPoint returns the ID of the cell containing (lat, lon). ok is false
// when the point falls outside the disk. Points on a shared edge go wherever
// H3's point-to-cell function puts them, which is deterministic.
func (g *Grid) AssignPoint(lat, lon float64) (string, bool) {
	idx := h3.FromGeo(h3.GeoCoord{Latitude: lat, Longitude: lon}, g.resolution)
	c, ok := g.cells[idx]
	if !ok {
		return "", false
	}
	return c.ID, true
}

// Intersecting returns the IDs of every cell whose boundary overlaps poly with
// positive area, sorted.
func (g *Grid) Intersecting(poly geom.Polygonal) []string {
	hits := g.overlaps(poly)
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.cell.ID)
	}
	sort.Strings(ids)
	return ids
}

// AssignPolygon returns the cell sharing the largest area with poly. Ties go to
// the lexically smallest cell ID. ok is false when poly misses the grid.
func (g *Grid) AssignPolygon(poly geom.Polygonal) (string, bool) {
	hits := g.overlaps(poly)
	if len(hits) == 0 {
		return "", false
	}
	best := hits[0]
	for _, h := range hits[1:] {
		if h.area > best.area || (h.area == best.area && h.cell.ID < best.cell.ID) {
			best = h
		}
	}
	return best.cell.ID, true
}

type overlap struct {
	cell *Cell
	area float64
}

func (g *Grid) overlaps(poly geom.Polygonal) []overlap {
	if poly == nil || len(poly.Polygons()) == 0 {
		return nil
	}
	b := poly.Bounds()
	if b == nil {
		return nil
	}
	var out []overlap
	for _, candidate := range g.index.SearchIntersect(b) {
		entry, ok := candidate.(*indexed)
		if !ok {
			continue
		}
		isect := entry.cell.Polygon.Intersection(poly)
		if isect == nil {
			continue
		}
		if a := isect.Area(); a > 0 {
			out = append(out, overlap{cell: entry.cell, area: a})
		}
	}
	return out
}

// TagStates labels each cell with the name of the state polygon containing its
// centroid. Cells outside every state keep an empty label.
func (g *Grid) TagStates(states []State) int {
	if len(states) == 0 {
		return 0
	}
	index := rtree.NewTree(25, 50)
	for i := range states {
		index.Insert(&states[i])
	}

	tagged := 0
	for _, c := range g.cells {
		centroid := c.Polygon.Centroid()
		for _, candidate := range index.SearchIntersect(centroid.Bounds()) {
			s, ok := candidate.(*State)
			if !ok {
				continue
			}
			if centroid.Within(s.Polygonal) != geom.Outside {
				c.State = s.Name
				tagged++
				break
			}
		}
	}
	return tagged
}

// StateOf returns the state label of a cell, or "" if it has none.
func (g *Grid) StateOf(id string) string {
	if c, ok := g.byID[id]; ok {
		return c.State
	}
	return ""
}

// State is a named boundary polygon used to label cells.
type State struct {
	geom.Polygonal
	Name string
}
