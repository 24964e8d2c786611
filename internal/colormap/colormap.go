// Package colormap samples continuous colormaps for map fills and legends.
//
// Maps are colorgrad gradients. The sequential and diverging schemes are the
// colorgrad presets; cool and hot follow their matplotlib definitions.
package colormap

import (
	"fmt"
	"image/color"
	"math"
	"sort"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/mazznoer/colorgrad"
)

// Default is used when a field names no colormap or an unknown one.
const Default = "viridis"

// NoData is the fill for missing values: fully transparent.
var NoData = color.RGBA{}

// Colormap maps a position in [0, 1] onto a color.
type Colormap struct {
	name     string
	at       func(float64) colorful.Color
	reversed bool
}

var registry = map[string]colorgrad.Gradient{}

func init() {
	for name, g := range map[string]colorgrad.Gradient{
		"viridis": colorgrad.Viridis(),
		"RdYlGn":  colorgrad.RdYlGn(),
		"Blues":   colorgrad.Blues(),
		"PuBuGn":  colorgrad.PuBuGn(),
		"YlOrBr":  colorgrad.YlOrBr(),
		"Purples": colorgrad.Purples(),
		"Reds":    colorgrad.Reds(),
		"Greys":   colorgrad.Greys(),
		"cool":    mustBuild("cool", colorgrad.NewGradient().HtmlColors("#00ffff", "#ff00ff")),
		// Red saturates at 0.365 and green at 0.746.
		"hot": mustBuild("hot", colorgrad.NewGradient().
			HtmlColors("#0b0000", "#ff0000", "#ffff00", "#ffffff").
			Domain(0, 0.365, 0.746, 1)),
	} {
		registry[name] = g
	}
}

func mustBuild(name string, b *colorgrad.GradientBuilder) colorgrad.Gradient {
	g, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("colormap %s: %v", name, err))
	}
	return g
}

// Get returns the named colormap. A "_r" suffix reverses any registered map.
func Get(name string) (Colormap, bool) {
	if g, ok := registry[name]; ok {
		return Colormap{name: name, at: g.At}, true
	}
	base, reversed := strings.CutSuffix(name, "_r")
	if !reversed {
		return Colormap{}, false
	}
	g, ok := registry[base]
	if !ok {
		return Colormap{}, false
	}
	return Colormap{name: name, at: g.At, reversed: true}, true
}

// MustGet returns the named colormap or the default one.
func MustGet(name string) Colormap {
	if cm, ok := Get(name); ok {
		return cm
	}
	cm, _ := Get(Default)
	return cm
}

// Exists reports whether name resolves to a colormap.
func Exists(name string) bool {
	_, ok := Get(name)
	return ok
}

// Names lists the registered colormaps, without reversed variants.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Name returns the colormap's registered name.
func (c Colormap) Name() string { return c.name }

// Reversed returns the colormap running from its end to its start.
func (c Colormap) Reversed() Colormap {
	out := c
	out.reversed = !c.reversed
	if base, ok := strings.CutSuffix(c.name, "_r"); ok {
		out.name = base
	} else {
		out.name = c.name + "_r"
	}
	return out
}

// At returns the color at t, clipped to [0, 1]. NaN yields NoData.
func (c Colormap) At(t float64) color.RGBA {
	if math.IsNaN(t) || c.at == nil {
		return NoData
	}
	t = math.Max(0, math.Min(1, t))
	if c.reversed {
		t = 1 - t
	}
	r, g, b := c.at(t).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// Hex returns the color at t as "#rrggbb", or "" for NoData.
func (c Colormap) Hex(t float64) string {
	if math.IsNaN(t) {
		return ""
	}
	return ToHex(c.At(t))
}

// Sample returns n evenly spaced colors from 0 to 1 inclusive.
func (c Colormap) Sample(n int) []color.RGBA {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []color.RGBA{c.At(0)}
	}
	out := make([]color.RGBA, n)
	for i := range out {
		out[i] = c.At(float64(i) / float64(n-1))
	}
	return out
}

// ParseHex parses "#rrggbb" into an opaque color.
func ParseHex(s string) (color.RGBA, error) {
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
}

// ToHex formats a color as "#rrggbb".
func ToHex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
