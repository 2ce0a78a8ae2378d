package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/mcoot/allfence/internal/model"
)

// CSVParser parses comma separated result sheets
type CSVParser struct{}

// NewCSVParser creates a new CSVParser
func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

// Parse reads every record and maps the fencer and placement columns
func (p *CSVParser) Parse(data []byte) ([]Row, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidImport, err)
	}
	return parseRows(records)
}
