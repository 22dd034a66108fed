package excelgrid

import (
	"encoding/csv"
	"fmt"
	"os"
)

// ReadCsv loads a CSV file into a grid named name. Fields are interpreted
// entry-bar style, so a field starting with "=" becomes a formula and numbers
// become typed values. Rows may be ragged; the grid is as wide as the widest
// row.
func ReadCsv(path string, name string) (*Grid, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	width := 0
	for _, record := range records {
		if len(record) > width {
			width = len(record)
		}
	}

	g := Empty(name, len(records))
	g.width = width
	for row, record := range records {
		for col, field := range record {
			expr, err := ParseLiteral(field, name)
			if err != nil {
				return nil, err
			}
			g.cells[Position{Row: row, Col: col}] = NewCell(expr)
		}
	}
	return g, nil
}
