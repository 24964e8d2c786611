package fields

import (
	"fmt"
	"math"
)

// Formatter names usable in the catalog and in a FIELDS_FILE.
const (
	FormatTenthsCelsiusToFahrenheit = "tenths_c_to_f"
	FormatTenthsMillimeters         = "tenths_mm"
	FormatMillimeters               = "mm"
	FormatPercent                   = "percent"
	FormatTenthsMetersPerSecond     = "tenths_m_s"
	FormatMeters                    = "meters"
	FormatCount                     = "count"
)

type formatFunc func(v float64) string

var formatters = map[string]formatFunc{
	FormatTenthsCelsiusToFahrenheit: func(v float64) string {
		return fmt.Sprintf("%.0f°F", v/10*9/5+32)
	},
	FormatTenthsMillimeters: func(v float64) string {
		return fmt.Sprintf("%.1f mm", v/10)
	},
	FormatMillimeters: func(v float64) string {
		return fmt.Sprintf("%.0f mm", v)
	},
	FormatPercent: func(v float64) string {
		return fmt.Sprintf("%.0f%%", v*100)
	},
	FormatTenthsMetersPerSecond: func(v float64) string {
		return fmt.Sprintf("%.1f m/s", v/10)
	},
	FormatMeters: func(v float64) string {
		return fmt.Sprintf("%.0f m", v)
	},
	FormatCount: func(v float64) string {
		return fmt.Sprintf("%.0f", v)
	},
}

// NoData is the label for a missing value.
const NoData = "n/a"

func formatWith(name string, v float64) string {
	if math.IsNaN(v) {
		return NoData
	}
	f, ok := formatters[name]
	if !ok {
		return fmt.Sprintf("%.2f", v)
	}
	return f(v)
}

func knownFormat(name string) bool {
	_, ok := formatters[name]
	return ok
}
