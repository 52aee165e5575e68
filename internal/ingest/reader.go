package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dougneedham/lossdev/internal/model"
)

// thousandsPattern matches plain comma-grouped amounts like 1,234 or
// -12,345,678.90. A comma that is not a thousands separator (European
// decimal comma) deliberately fails the parse instead of being guessed at.
var thousandsPattern = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+(\.\d+)?$`)

// Reader parses one delimited loss-run extract into normalized records.
// Every parse problem fails the whole source on first occurrence: a source
// is either ingested completely or not at all.
type Reader struct {
	columns model.ColumnsConfig
	metric  string
}

// NewReader creates a reader that requires the loss-date column and the
// given metric column in every source. Other configured metrics are picked
// up opportunistically when a source carries them.
func NewReader(columns model.ColumnsConfig, metric string) *Reader {
	return &Reader{
		columns: columns,
		metric:  metric,
	}
}

// Read parses content as header-plus-rows delimited text. fallbackYear is
// the evaluation period taken from the source's name; a configured
// file-year column overrides it per row. fallbackYear 0 with no such
// column fails the source.
func (r *Reader) Read(source string, fallbackYear int, content []byte) ([]model.Record, error) {
	content = bytes.TrimPrefix(content, []byte("\ufeff"))

	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = sniffDelimiter(content)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: parse: %w", source, err)
	}
	if len(rows) == 0 {
		return nil, &model.MissingColumnError{Source: source, Column: "loss_date"}
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = normalizeHeader(h)
	}

	dateIdx := findColumn(header, r.columns.LossDate)
	if dateIdx < 0 {
		return nil, &model.MissingColumnError{Source: source, Column: "loss_date"}
	}

	metricIdx := make(map[string]int)
	for canonical, aliases := range r.columns.Metrics {
		if idx := findColumn(header, aliases); idx >= 0 {
			metricIdx[canonical] = idx
		}
	}
	if _, ok := metricIdx[r.metric]; !ok {
		return nil, &model.MissingColumnError{Source: source, Column: r.metric}
	}

	yearIdx := findColumn(header, r.columns.FileYear)
	if yearIdx < 0 && fallbackYear == 0 {
		return nil, fmt.Errorf("%s: no file-year column and no year in the source name", source)
	}

	records := make([]model.Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rowNo := i + 1

		fileYear := fallbackYear
		if yearIdx >= 0 {
			fileYear, err = parseFileYear(row[yearIdx])
			if err != nil {
				return nil, fmt.Errorf("%s row %d: %w", source, rowNo, err)
			}
		}

		values := make(map[string]decimal.Decimal, len(metricIdx))
		for canonical, idx := range metricIdx {
			cell := strings.TrimSpace(row[idx])
			if cell == "" {
				continue // blank cell leaves the metric unset
			}
			amount, err := parseAmount(cell)
			if err != nil {
				return nil, fmt.Errorf("%s row %d: bad %s amount %q: %w", source, rowNo, canonical, cell, err)
			}
			values[canonical] = amount
		}

		records = append(records, model.Record{
			FileYear: fileYear,
			LossDate: strings.TrimSpace(row[dateIdx]),
			Values:   values,
			Source:   source,
			Row:      rowNo,
		})
	}

	return records, nil
}

// sniffDelimiter picks the delimiter with the most occurrences in the
// header line. Comma wins ties.
func sniffDelimiter(content []byte) rune {
	line := content
	if idx := bytes.IndexByte(content, '\n'); idx >= 0 {
		line = content[:idx]
	}

	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, cand := range []byte{';', '\t'} {
		if n := bytes.Count(line, []byte{cand}); n > bestCount {
			best, bestCount = rune(cand), n
		}
	}
	return best
}

// normalizeHeader lowers a header cell and squashes separators so
// "Loss Date", "loss-date" and "LOSS_DATE" all become loss_date.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, "-", "_")
	return h
}

func findColumn(header []string, aliases []string) int {
	for i, h := range header {
		for _, alias := range aliases {
			if h == alias {
				return i
			}
		}
	}
	return -1
}

func parseFileYear(cell string) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(cell))
	if err != nil {
		return 0, fmt.Errorf("bad file year %q", cell)
	}
	if year < 1900 || year > 2199 {
		return 0, fmt.Errorf("file year %d out of range", year)
	}
	return year, nil
}

// parseAmount normalizes spreadsheet money formatting: a leading $,
// accounting-style parentheses for negatives, and comma thousands
// separators. Anything still ambiguous fails explicitly.
func parseAmount(cell string) (decimal.Decimal, error) {
	s := strings.TrimSpace(cell)

	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	s = strings.Replace(s, "$", "", 1)
	s = strings.TrimSpace(s)

	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") || thousandsPattern.MatchString(s) {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	return decimal.NewFromString(s)
}
