// Package render turns normalized field values into map overlays and legends.
package render

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/couchcryptid/wildfire-hex-etl/internal/colormap"
	"github.com/couchcryptid/wildfire-hex-etl/internal/fields"
)

// ErrTooFewTicks is returned when a colorbar is requested with fewer than two
// ticks.
var ErrTooFewTicks = errors.New("colorbar needs at least two ticks")

// DefaultTicks is the tick count used when a request does not give one.
const DefaultTicks = 5

// Stop is one color stop of a legend, at a position in [0, 1].
type Stop struct {
	Position float64 `json:"position"`
	Color    string  `json:"color"`
}

// Tick is a labeled position on the legend.
type Tick struct {
	Position float64 `json:"position"`
	Value    float64 `json:"value"`
	Label    string  `json:"label"`
}

// Legend describes a colorbar for one field.
type Legend struct {
	Field    string  `json:"field"`
	Label    string  `json:"label"`
	Unit     string  `json:"unit"`
	Colormap string  `json:"colormap"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Stops    []Stop  `json:"stops"`
	Ticks    []Tick  `json:"ticks"`
	Gradient string  `json:"gradient"`
}

// Colorbar builds the legend for f over its fixed range.
func Colorbar(f fields.Field, ticks int) (Legend, error) {
	return ColorbarRange(f, f.Min, f.Max, ticks)
}

// ColorbarRange builds the legend for f over [lo, hi] with ticks evenly spaced
// stops. Tick labels use the field's formatter.
func ColorbarRange(f fields.Field, lo, hi float64, ticks int) (Legend, error) {
	if ticks < 2 {
		return Legend{}, fmt.Errorf("%w: got %d", ErrTooFewTicks, ticks)
	}
	cm := colormapFor(f)
	lg := Legend{
		Field:    f.Key,
		Label:    f.Label,
		Unit:     f.Unit,
		Colormap: cm.Name(),
		Min:      lo,
		Max:      hi,
		Stops:    make([]Stop, ticks),
		Ticks:    make([]Tick, ticks),
	}
	parts := make([]string, ticks)
	colors := cm.Sample(ticks)
	for i := range ticks {
		pos := float64(i) / float64(ticks-1)
		hex := colormap.ToHex(colors[i])
		value := lo + pos*(hi-lo)
		lg.Stops[i] = Stop{Position: pos, Color: hex}
		lg.Ticks[i] = Tick{Position: pos, Value: value, Label: f.FormatValue(value)}
		parts[i] = fmt.Sprintf("%s %g%%", hex, math.Round(pos*10000)/100)
	}
	lg.Gradient = "linear-gradient(to right, " + strings.Join(parts, ", ") + ")"
	return lg, nil
}

// colormapFor returns the field's colormap, or the default one if the name is
// not registered. Catalog fields are checked at load time, so the fallback
// only applies to fields built elsewhere; the legend and overlay report the
// name actually used.
func colormapFor(f fields.Field) colormap.Colormap {
	if cm, ok := colormap.Get(f.Colormap); ok {
		return cm
	}
	return colormap.MustGet(colormap.Default)
}
