// Package parquet reads and writes the lake's tables as Parquet files.
package parquet

import (
	"fmt"
	"os"
	"path/filepath"

	parquetgo "github.com/parquet-go/parquet-go"

	"github.com/couchcryptid/wildfire-hex-etl/internal/domain"
)

// Write atomically writes rows to path via a .tmp file in the same directory.
// Missing parent directories are created.
func Write[T any](path string, rows []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", path, err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	w := parquetgo.NewGenericWriter[T](f)
	if _, err := w.Write(rows); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write rows to %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("close writer for %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

// Read loads every row of the file at path.
func Read[T any](path string) ([]T, error) {
	rows, err := parquetgo.ReadFile[T](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

// WriteStations writes the cleaned station table.
func WriteStations(path string, rows []domain.Station) error { return Write(path, rows) }

// ReadStations reads the cleaned station table.
func ReadStations(path string) ([]domain.Station, error) { return Read[domain.Station](path) }

// WriteStationDays writes a cleaned yearly station-day table.
func WriteStationDays(path string, rows []domain.StationDay) error { return Write(path, rows) }

// ReadStationDays reads a cleaned yearly station-day table.
func ReadStationDays(path string) ([]domain.StationDay, error) {
	return Read[domain.StationDay](path)
}

// WriteHexRecords writes a curated yearly hex table.
func WriteHexRecords(path string, rows []domain.HexRecord) error { return Write(path, rows) }

// ReadHexRecords reads a curated yearly hex table.
func ReadHexRecords(path string) ([]domain.HexRecord, error) {
	return Read[domain.HexRecord](path)
}

// ReadPredictions reads model output rows.
func ReadPredictions(path string) ([]domain.Prediction, error) {
	return Read[domain.Prediction](path)
}
