package importer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mcoot/allfence/internal/model"
)

func TestParserFor(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		want     Parser
		wantErr  bool
	}{
		{name: "csv", fileName: "results.csv", want: &CSVParser{}},
		{name: "upper case extension", fileName: "RESULTS.CSV", want: &CSVParser{}},
		{name: "xlsx", fileName: "results.xlsx", want: &XLSXParser{}},
		{name: "unsupported", fileName: "results.txt", wantErr: true},
		{name: "no extension", fileName: "results", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParserFor(tt.fileName)
			if tt.wantErr {
				require.ErrorIs(t, err, model.ErrInvalidImport)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, p)
		})
	}
}

func TestCSVParser(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    []Row
		wantErr bool
	}{
		{
			name: "canonical header",
			data: "fencer_id,placement\nF-1,1\nF-2,2\n",
			want: []Row{{FencerID: "F-1", Placement: 1, Line: 2}, {FencerID: "F-2", Placement: 2, Line: 3}},
		},
		{
			name: "alternate header names and extra columns",
			data: "Name,Fencer ID,Place\nAda,F-9,3\n",
			want: []Row{{FencerID: "F-9", Placement: 3, Line: 2}},
		},
		{
			name: "rank column and blank lines",
			data: "FENCER_ID,Rank\n\nF-1, 4\n,\n",
			want: []Row{{FencerID: "F-1", Placement: 4, Line: 2}},
		},
		{name: "missing placement column", data: "fencer_id,name\nF-1,Ada\n", wantErr: true},
		{name: "non-numeric placement", data: "fencer_id,placement\nF-1,first\n", wantErr: true},
		{name: "missing fencer id", data: "fencer_id,placement\n,1\n", wantErr: true},
		{name: "header only", data: "fencer_id,placement\n", wantErr: true},
		{name: "empty", data: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := NewCSVParser().Parse([]byte(tt.data))
			if tt.wantErr {
				require.ErrorIs(t, err, model.ErrInvalidImport)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, rows)
		})
	}
}

func TestXLSXParser(t *testing.T) {
	t.Run("first sheet", func(t *testing.T) {
		data := buildXLSX(t, [][]string{
			{"Fencer_ID", "Placement"},
			{"F-1", "2"},
			{"F-2", "1"},
		})

		rows, err := NewXLSXParser().Parse(data)
		require.NoError(t, err)
		assert.Equal(t, []Row{
			{FencerID: "F-1", Placement: 2, Line: 2},
			{FencerID: "F-2", Placement: 1, Line: 3},
		}, rows)
	})

	t.Run("not a workbook", func(t *testing.T) {
		_, err := NewXLSXParser().Parse([]byte("fencer_id,placement\nF-1,1\n"))
		require.ErrorIs(t, err, model.ErrInvalidImport)
	})

	t.Run("missing columns", func(t *testing.T) {
		data := buildXLSX(t, [][]string{{"who", "where"}, {"F-1", "1"}})
		_, err := NewXLSXParser().Parse(data)
		require.ErrorIs(t, err, model.ErrInvalidImport)
	})
}

func TestPlacements(t *testing.T) {
	t.Run("maps rows", func(t *testing.T) {
		got, err := Placements([]Row{{FencerID: "F-1", Placement: 1, Line: 2}, {FencerID: "F-2", Placement: 2, Line: 3}})
		require.NoError(t, err)
		assert.Equal(t, map[model.FencerID]int{"F-1": 1, "F-2": 2}, got)
	})

	t.Run("rejects a repeated fencer", func(t *testing.T) {
		_, err := Placements([]Row{{FencerID: "F-1", Placement: 1, Line: 2}, {FencerID: "F-1", Placement: 2, Line: 5}})
		require.ErrorIs(t, err, model.ErrInvalidImport)
		assert.Contains(t, err.Error(), "lines 2 and 5")
	})
}

func buildXLSX(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	for i, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		require.NoError(t, f.SetSheetRow(sheet, axis, &cells))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())
	return buf.Bytes()
}
