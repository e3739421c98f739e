package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrEmptyInput is returned when the input has no header row at all.
var ErrEmptyInput = errors.New("records: empty csv input")

// ReadCSV parses an audit export. The header row is required; rows
// whose field count does not match the header are skipped and counted,
// as are rows the csv parser cannot recover. Only an input with no
// readable header is a hard failure.
func ReadCSV(r io.Reader) (*Batch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("records: read csv header: %w", err)
	}

	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = strings.TrimSpace(name)
	}

	batch := &Batch{Columns: columns}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			batch.Stats.SkippedRows++
			continue
		}
		if len(row) != len(columns) {
			batch.Stats.SkippedRows++
			continue
		}
		m := make(map[string]string, len(columns))
		for i, name := range columns {
			m[name] = row[i]
		}
		batch.Rows = append(batch.Rows, m)
		batch.Stats.TotalRows++
	}
	return batch, nil
}
