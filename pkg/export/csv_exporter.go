package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset defines tabular export content. Notes are free-form lines printed
// under the table by renderers that support them.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
	Notes   []string
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVOption customises a CSVExporter.
type CSVOption func(*CSVExporter)

// WithDelimiter switches the field separator, e.g. ';' for locales where
// spreadsheets expect it.
func WithDelimiter(r rune) CSVOption {
	return func(e *CSVExporter) {
		if r != 0 && r != '"' && r != '\r' && r != '\n' {
			e.delimiter = r
		}
	}
}

// WithUTF8BOM prefixes output with a byte order mark so Excel detects UTF-8
// subject and faculty names.
func WithUTF8BOM() CSVOption {
	return func(e *CSVExporter) { e.bom = true }
}

// CSVExporter renders timetable datasets as CSV.
type CSVExporter struct {
	delimiter rune
	bom       bool
}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter(opts ...CSVOption) *CSVExporter {
	e := &CSVExporter{delimiter: ','}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Render writes the header row then one record per dataset row. Notes are
// dropped since CSV has nowhere to put them.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	if e.bom {
		buf.Write(utf8BOM)
	}
	writer := csv.NewWriter(buf)
	writer.Comma = e.delimiter

	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	record := make([]string, len(data.Headers))
	for _, row := range data.Rows {
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// CSVOptions maps export settings onto exporter options. Only the first rune
// of delimiter is used.
func CSVOptions(delimiter string, bom bool) []CSVOption {
	var opts []CSVOption
	if r := []rune(delimiter); len(r) > 0 {
		opts = append(opts, WithDelimiter(r[0]))
	}
	if bom {
		opts = append(opts, WithUTF8BOM())
	}
	return opts
}
