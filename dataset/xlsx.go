/*
xlsx.go - Excel workbook decoding into header-keyed rows

PURPOSE:
  Same contract as csv.go for .xlsx uploads: first sheet, first non-empty
  record is the header, everything below is data. Excelize returns cells as
  formatted strings, so the lenient numeric parsing in parse.go applies
  unchanged.

SEE ALSO:
  - parse.go: Row -> domain mapping
*/
package dataset

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/warp/comp-engine/engine"
)

// ReadXLSX decodes the first sheet of an Excel workbook into header-keyed
// rows.
func ReadXLSX(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, engine.ErrEmptyUpload
	}
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	// Skip leading blank banner rows some exports carry.
	start := 0
	for start < len(records) && isBlank(records[start]) {
		start++
	}
	if len(records)-start < 2 {
		return nil, engine.ErrEmptyUpload
	}

	headers := make([]string, len(records[start]))
	for i, h := range records[start] {
		headers[i] = NormalizeHeader(h)
	}

	rows := make([]Row, 0, len(records)-start-1)
	for _, record := range records[start+1:] {
		if isBlank(record) {
			continue
		}
		row := make(Row, len(headers))
		for i, h := range headers {
			if h == "" || i >= len(record) {
				continue
			}
			row[h] = record[i]
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, engine.ErrEmptyUpload
	}
	return rows, nil
}

// Read sniffs the upload format from the filename and decodes accordingly.
func Read(r io.Reader, filename string) ([]Row, error) {
	switch {
	case strings.HasSuffix(strings.ToLower(filename), ".csv"):
		return ReadCSV(r)
	case strings.HasSuffix(strings.ToLower(filename), ".xlsx"):
		return ReadXLSX(r)
	}

	// No usable extension: sniff the zip magic xlsx files start with.
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(buf) >= 2 && buf[0] == 'P' && buf[1] == 'K' {
		return ReadXLSX(bytes.NewReader(buf))
	}
	if len(buf) > 0 {
		return ReadCSV(bytes.NewReader(buf))
	}
	return nil, engine.ErrUnknownFormat
}
