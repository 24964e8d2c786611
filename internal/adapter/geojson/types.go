// Package geojson reads USFS fire layers and defines the GeoJSON document
// types written by the layer renderer.
package geojson

import (
	"github.com/ctessum/geom"
	gjson "github.com/ctessum/geom/encoding/geojson"
)

// FeatureCollection is a GeoJSON feature collection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewFeatureCollection returns an empty collection with the type member set.
func NewFeatureCollection(features []Feature) FeatureCollection {
	if features == nil {
		features = []Feature{}
	}
	return FeatureCollection{Type: "FeatureCollection", Features: features}
}

// Feature is a GeoJSON feature. ID is omitted when empty.
type Feature struct {
	Type       string          `json:"type"`
	ID         string          `json:"id,omitempty"`
	Geometry   *gjson.Geometry `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// NewFeature encodes g and wraps it in a feature.
func NewFeature(id string, g geom.Geom, props map[string]any) (Feature, error) {
	enc, err := gjson.ToGeoJSON(g)
	if err != nil {
		return Feature{}, err
	}
	return Feature{Type: "Feature", ID: id, Geometry: enc, Properties: props}, nil
}

// PolygonFeature builds a feature for a single-ring polygon given as
// [lon, lat] pairs.
func PolygonFeature(id string, ring [][2]float64, props map[string]any) (Feature, error) {
	path := make(geom.Path, len(ring))
	for i, c := range ring {
		path[i] = geom.Point{X: c[0], Y: c[1]}
	}
	return NewFeature(id, geom.Polygon{path}, props)
}

// PointFeature builds a Point feature.
func PointFeature(id string, lon, lat float64, props map[string]any) (Feature, error) {
	return NewFeature(id, geom.Point{X: lon, Y: lat}, props)
}
