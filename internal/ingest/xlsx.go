package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/reeldata/marquee/internal/model"
)

// ParseXLSX reads the revenue data from the first sheet of an XLSX export.
// Row semantics match ParseCSV: the first row is the header, malformed rows
// are skipped and counted.
func ParseXLSX(ctx context.Context, path string) ([]model.RevenueRecord, *model.QualitySummary, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "ingest: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, nil, eris.New("ingest: xlsx has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, nil, eris.New("ingest: empty input")
	}

	cols := columnIndex(rowToStrings(sheet.Rows[0]))
	if err := requireColumns(cols); err != nil {
		return nil, nil, err
	}

	var (
		records []model.RevenueRecord
		summary model.QualitySummary
	)

	for i, row := range sheet.Rows[1:] {
		if ctx.Err() != nil {
			return nil, nil, eris.Wrap(ctx.Err(), "ingest: cancelled")
		}

		record, err := parseRow(cols, rowToStrings(row), &summary)
		if err != nil {
			summary.RowsFailed++
			zap.L().Warn("ingest: skipping row",
				zap.Int("row", i+2),
				zap.Error(err),
			)
			continue
		}

		summary.RowsParsed++
		records = append(records, record)
	}

	return records, &summary, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
