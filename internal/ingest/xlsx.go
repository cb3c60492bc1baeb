package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions configures the XLSX parser. StartRow is the zero-based index
// of the header row; everything above it is worksheet chrome and skipped.
type XLSXOptions struct {
	SheetName string // if empty, the first sheet is used
	StartRow  int
}

// StreamXLSX opens a workbook, reads the header row synchronously, then
// streams the data rows on a channel. Both channels are closed when parsing
// completes.
func StreamXLSX(ctx context.Context, path string, opts XLSXOptions) ([]string, <-chan []string, <-chan error, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, nil, nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts.SheetName)
	if err != nil {
		return nil, nil, nil, err
	}

	if opts.StartRow >= len(sheet.Rows) {
		return nil, closedRowCh(), closedErrCh(), nil
	}
	header := rowToStrings(sheet.Rows[opts.StartRow])

	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		for _, row := range sheet.Rows[opts.StartRow+1:] {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}

			select {
			case rowCh <- rowToStrings(row):
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}
		}
	}()

	return header, rowCh, errCh, nil
}

func getSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", name)
		}
		return sheet, nil
	}

	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
