// Package importer reads tournament placements from uploaded result sheets.
package importer

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mcoot/allfence/internal/model"
)

// Row is one fencer's placement as read from a sheet. Line is 1-based and
// counts the header.
type Row struct {
	FencerID  model.FencerID
	Placement int
	Line      int
}

// Parser turns a result sheet into placement rows
type Parser interface {
	Parse(data []byte) ([]Row, error)
}

// ParserFor returns the parser matching the file's extension
func ParserFor(fileName string) (Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".csv":
		return NewCSVParser(), nil
	case ".xlsx":
		return NewXLSXParser(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", model.ErrInvalidImport, ext)
	}
}

// Placements collapses rows into the mapping accepted by the results recorder.
// A fencer listed twice is rejected rather than letting the later row win.
func Placements(rows []Row) (map[model.FencerID]int, error) {
	out := make(map[model.FencerID]int, len(rows))
	seen := make(map[model.FencerID]int, len(rows))
	for _, r := range rows {
		if first, ok := seen[r.FencerID]; ok {
			return nil, fmt.Errorf("%w: fencer %s appears on lines %d and %d", model.ErrInvalidImport, r.FencerID, first, r.Line)
		}
		seen[r.FencerID] = r.Line
		out[r.FencerID] = r.Placement
	}
	return out, nil
}

var (
	fencerColumns    = []string{"fencer_id", "fencer", "id"}
	placementColumns = []string{"placement", "place", "rank"}
)

// findColumn matches header names case-insensitively, ignoring spaces,
// underscores and hyphens
func findColumn(header []string, names []string) int {
	for _, name := range names {
		want := normalizeHeader(name)
		for i, col := range header {
			if normalizeHeader(col) == want {
				return i
			}
		}
	}
	return -1
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "_", "", "-", "", "\ufeff", "").Replace(s)
}

// parseRows is shared by every sheet format once cells are strings
func parseRows(records [][]string) ([]Row, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: file is empty", model.ErrInvalidImport)
	}

	header := records[0]
	fencerCol := findColumn(header, fencerColumns)
	placementCol := findColumn(header, placementColumns)
	if fencerCol < 0 || placementCol < 0 {
		return nil, fmt.Errorf("%w: header must name fencer_id and placement columns", model.ErrInvalidImport)
	}

	var rows []Row
	for i, record := range records[1:] {
		line := i + 2
		if blank(record) {
			continue
		}
		fencer := cell(record, fencerCol)
		if fencer == "" {
			return nil, fmt.Errorf("%w: line %d has no fencer id", model.ErrInvalidImport, line)
		}
		placement, err := strconv.Atoi(cell(record, placementCol))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d placement %q is not a number", model.ErrInvalidImport, line, cell(record, placementCol))
		}
		rows = append(rows, Row{FencerID: model.FencerID(fencer), Placement: placement, Line: line})
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no placements found", model.ErrInvalidImport)
	}
	return rows, nil
}

func cell(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func blank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
