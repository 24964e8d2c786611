package ghcnd

import (
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/couchcryptid/wildfire-hex-etl/internal/domain"
)

// ErrBadArchive is returned when a daily file is not a readable gzip stream.
var ErrBadArchive = errors.New("ghcnd: malformed gzip archive")

// dailyFields is the column count of a by_year row. Rows need at least the
// first four columns; trailing flag columns may be missing.
const (
	dailyFields    = 8
	dailyMinFields = 4
	dailyBatch     = 8192
)

// dailyRow mirrors the column order of the headerless by_year CSV files.
type dailyRow struct {
	StationID string `csv:"station_id"`
	Date      string `csv:"date"`
	Element   string `csv:"element"`
	Value     string `csv:"value"`
	MFlag     string `csv:"m_flag"`
	QFlag     string `csv:"q_flag"`
	SFlag     string `csv:"s_flag"`
	ObsTime   string `csv:"obs_time"`
}

// DailyParseResult carries the kept observations and per-reason drop counts.
type DailyParseResult struct {
	Observations []domain.DailyObservation
	Dropped      map[string]int
}

// Drop reasons reported in DailyParseResult.Dropped.
const (
	DropMalformed = "malformed"
	DropElement   = "unknown_element"
)

func (r *DailyParseResult) drop(reason string) {
	if r.Dropped == nil {
		r.Dropped = make(map[string]int)
	}
	r.Dropped[reason]++
}

// errRecorder remembers the first error returned by the wrapped reader so a
// decompression failure can be told apart from a CSV problem.
type errRecorder struct {
	r   io.Reader
	err error
}

func (e *errRecorder) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err != nil && err != io.EOF && e.err == nil {
		e.err = err
	}
	return n, err
}

// ParseDailyGzip decompresses and parses a yearly daily archive. Rows whose
// element is not in keep are dropped; a nil keep retains every known element.
// Any decompression failure is reported as ErrBadArchive.
func ParseDailyGzip(r io.Reader, keep []domain.Element) (DailyParseResult, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return DailyParseResult{}, fmt.Errorf("%w: %v", ErrBadArchive, err)
	}
	defer zr.Close()

	rec := &errRecorder{r: zr}
	res, err := ParseDaily(rec, keep)
	if rec.err != nil {
		return DailyParseResult{}, fmt.Errorf("%w: %v", ErrBadArchive, rec.err)
	}
	return res, err
}

// ParseDaily parses uncompressed headerless daily CSV rows. Rows are read
// one at a time; unwanted elements and rows with a bad field count are
// counted and dropped before decoding, so only kept rows are held in memory.
func ParseDaily(r io.Reader, keep []domain.Element) (DailyParseResult, error) {
	src := &recordSource{r: csv.NewReader(r), wanted: elementSet(keep)}
	src.r.FieldsPerRecord = -1
	src.r.LazyQuotes = true

	for {
		batch, err := src.next()
		if err != nil {
			return DailyParseResult{}, fmt.Errorf("read daily csv: %w", err)
		}
		if len(batch) == 0 {
			return src.res, nil
		}
		var rows []dailyRow
		if err := gocsv.UnmarshalCSVWithoutHeaders(batch, &rows); err != nil {
			return DailyParseResult{}, fmt.Errorf("decode daily csv: %w", err)
		}
		for _, row := range rows {
			src.res.add(row)
		}
	}
}

// recordSource pulls raw records and filters them before decoding.
type recordSource struct {
	r      *csv.Reader
	wanted map[domain.Element]bool
	res    DailyParseResult
}

// next returns up to dailyBatch records padded to dailyFields. An empty batch
// means the input is exhausted.
func (s *recordSource) next() (recordBatch, error) {
	var batch recordBatch
	for len(batch) < dailyBatch {
		rec, err := s.r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			s.res.drop(DropMalformed)
			continue
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < dailyMinFields || len(rec) > dailyFields {
			s.res.drop(DropMalformed)
			continue
		}
		if el, ok := domain.ParseElement(strings.TrimSpace(rec[2])); !ok || !s.wanted[el] {
			s.res.drop(DropElement)
			continue
		}
		row := make([]string, dailyFields)
		copy(row, rec)
		batch = append(batch, row)
	}
	return batch, nil
}

// recordBatch serves pre-read records to gocsv.
type recordBatch [][]string

func (b recordBatch) Read() ([]string, error) {
	return nil, io.EOF
}

func (b recordBatch) ReadAll() ([][]string, error) {
	return b, nil
}

func (r *DailyParseResult) add(row dailyRow) {
	el, _ := domain.ParseElement(strings.TrimSpace(row.Element))
	date, err := time.Parse("20060102", strings.TrimSpace(row.Date))
	if err != nil {
		r.drop(DropMalformed)
		return
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(row.Value), 64)
	if err != nil {
		r.drop(DropMalformed)
		return
	}
	id := strings.TrimSpace(row.StationID)
	if id == "" {
		r.drop(DropMalformed)
		return
	}
	r.Observations = append(r.Observations, domain.DailyObservation{
		StationID: id,
		Date:      date,
		Element:   el,
		Value:     v,
	})
}

func elementSet(keep []domain.Element) map[domain.Element]bool {
	if len(keep) == 0 {
		keep = domain.AllElements
	}
	m := make(map[domain.Element]bool, len(keep))
	for _, e := range keep {
		m[e] = true
	}
	return m
}
