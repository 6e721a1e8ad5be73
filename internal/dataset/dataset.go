// Package dataset reads the delimited training table.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"loan-scorer/internal/features"
)

var ErrEmptyHeader = errors.New("dataset header is empty")

// Dataset is a table of named columns. Records keep the raw cell text.
type Dataset struct {
	Columns []string
	Records []map[string]string
}

// LoadCSV reads a comma separated table with a header row from path.
func LoadCSV(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	ds, err := Read(file, ',')
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	log.Info().
		Str("path", path).
		Int("rows", len(ds.Records)).
		Int("columns", len(ds.Columns)).
		Msg("Training table loaded")

	return ds, nil
}

// Read parses a delimited table from r. Short rows leave the trailing columns
// absent; extra cells are ignored.
func Read(r io.Reader, delimiter rune) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make([]string, 0, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if h == "" {
			return nil, fmt.Errorf("%w: column %d", ErrEmptyHeader, i)
		}
		columns = append(columns, h)
	}

	ds := &Dataset{Columns: columns}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read record at line %d: %w", line, err)
		}

		row := make(map[string]string, len(columns))
		for i, c := range columns {
			if i < len(record) {
				row[c] = record[i]
			}
		}
		ds.Records = append(ds.Records, row)
	}

	return ds, nil
}

// HasColumn reports whether the table has the named column.
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Rows converts every record to a feature row.
func (d *Dataset) Rows() []features.Row {
	rows := make([]features.Row, len(d.Records))
	for i, r := range d.Records {
		rows[i] = features.FromRecord(r)
	}
	return rows
}
