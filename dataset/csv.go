/*
csv.go - CSV decoding into header-keyed rows

PURPOSE:
  Reads an uploaded CSV stream into Rows. Tolerates the artifacts real
  exports carry: a UTF-8 BOM, ragged short rows, and trailing empty lines.

SEE ALSO:
  - parse.go: Row -> domain mapping
  - export.go: The writing direction
*/
package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/warp/comp-engine/engine"
)

// bom is the UTF-8 byte-order mark Excel prepends to CSV files.
var bom = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV decodes a CSV stream into header-keyed rows. The first record is
// the header; short data rows are padded, long ones truncated.
func ReadCSV(r io.Reader) ([]Row, error) {
	br := bufio.NewReader(r)
	if lead, err := br.Peek(len(bom)); err == nil && bytes.Equal(lead, bom) {
		br.Discard(len(bom))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1 // ragged rows are the upload's problem, not ours
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}
	if len(records) < 2 {
		return nil, engine.ErrEmptyUpload
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = NormalizeHeader(h)
	}

	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		if isBlank(record) {
			continue
		}
		row := make(Row, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			if i < len(record) {
				row[h] = record[i]
			}
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, engine.ErrEmptyUpload
	}
	return rows, nil
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if len(bytes.TrimSpace([]byte(cell))) > 0 {
			return false
		}
	}
	return true
}
