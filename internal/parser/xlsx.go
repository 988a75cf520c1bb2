package parser

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// parseXLSX renders each sheet as tab-separated rows under a sheet marker.
// Blank rows are skipped; page count is the number of sheets.
func parseXLSX(path, fileType string) (*Result, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		if fileType == "xls" {
			return nil, eris.Wrap(ErrDependencyMissing,
				"parser: legacy .xls workbooks need conversion to .xlsx (e.g. libreoffice --convert-to xlsx)")
		}
		return nil, eris.Wrapf(err, "parser: open xlsx %s", path)
	}

	var blocks []string
	for _, sheet := range f.Sheets {
		var lines []string
		for _, row := range sheet.Rows {
			if row == nil {
				continue
			}
			cells := rowToStrings(row)
			if allBlank(cells) {
				continue
			}
			lines = append(lines, strings.Join(cells, "\t"))
		}
		if len(lines) > 0 {
			blocks = append(blocks, "=== Sheet: "+sheet.Name+" ===\n"+strings.Join(lines, "\n"))
		}
	}

	return &Result{
		Text:      strings.Join(blocks, "\n\n"),
		PageCount: len(f.Sheets),
	}, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell == nil {
			continue
		}
		cells[j] = cell.String()
	}
	return cells
}

func allBlank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
