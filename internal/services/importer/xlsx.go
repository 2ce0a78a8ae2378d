package importer

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/mcoot/allfence/internal/model"
)

// XLSXParser parses the first sheet of an Excel workbook
type XLSXParser struct{}

// NewXLSXParser creates a new XLSXParser
func NewXLSXParser() *XLSXParser {
	return &XLSXParser{}
}

// Parse reads the first sheet's rows as strings
func (p *XLSXParser) Parse(data []byte) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open workbook: %v", model.ErrInvalidImport, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", model.ErrInvalidImport)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read sheet %q: %v", model.ErrInvalidImport, sheets[0], err)
	}
	return parseRows(rows)
}
