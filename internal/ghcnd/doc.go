// Package ghcnd parses and cleans GHCN-Daily inputs: the fixed-width station
// inventory and the yearly gzipped daily CSV files.
//
// Cleaning a year follows the same steps every time: parse the long
// (station, date, element, value) rows, keep the configured elements, pivot
// them into one wide row per station and date (an outer join of the element
// tables), then inner-join the station inventory to attach coordinates and
// elevation. Flags and observation times are dropped.
package ghcnd
