// Package ingest parses the raw daily box-office revenue input into typed
// records, classifying data-quality anomalies as it goes. Malformed rows are
// skipped and counted, never fatal.
package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/reeldata/marquee/internal/model"
)

const dateLayout = "2006-01-02"

// expected header columns. Lookup is by name so column order in the source
// file does not matter.
const (
	colID          = "id"
	colDate        = "date"
	colTitle       = "title"
	colRevenue     = "revenue"
	colTheaters    = "theaters"
	colDistributor = "distributor"
)

// ParseCSV reads the revenue CSV and returns all parsed records plus a
// quality summary. Zero-revenue rows are returned flagged; callers decide
// whether to load them (see Filter).
func ParseCSV(ctx context.Context, r io.Reader) ([]model.RevenueRecord, *model.QualitySummary, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // tolerate ragged rows; row parsing validates

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, eris.New("ingest: empty input")
	}
	if err != nil {
		return nil, nil, eris.Wrap(err, "ingest: read header")
	}
	cols := columnIndex(header)
	if err := requireColumns(cols); err != nil {
		return nil, nil, err
	}

	var (
		records []model.RevenueRecord
		summary model.QualitySummary
	)

	for rowNum := 2; ; rowNum++ { // 1-based, accounting for the header row
		if ctx.Err() != nil {
			return nil, nil, eris.Wrap(ctx.Err(), "ingest: cancelled")
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A structurally broken row (e.g. bad quoting) fails the row,
			// not the run.
			summary.RowsFailed++
			zap.L().Warn("ingest: unreadable row",
				zap.Int("row", rowNum),
				zap.Error(err),
			)
			continue
		}

		record, err := parseRow(cols, row, &summary)
		if err != nil {
			summary.RowsFailed++
			zap.L().Warn("ingest: skipping row",
				zap.Int("row", rowNum),
				zap.Error(err),
			)
			continue
		}

		summary.RowsParsed++
		records = append(records, record)
	}

	zap.L().Info("ingest: parse complete",
		zap.Int("rows_parsed", summary.RowsParsed),
		zap.Int("rows_failed", summary.RowsFailed),
		zap.Int("empty_theater_count", summary.EmptyTheaterCount),
		zap.Int("missing_distributor", summary.MissingDistributor),
		zap.Int("zero_revenue", summary.ZeroRevenue),
	)

	return records, &summary, nil
}

// Filter returns the records that belong in the staged raw-revenue set.
func Filter(records []model.RevenueRecord) []model.RevenueRecord {
	out := make([]model.RevenueRecord, 0, len(records))
	for _, r := range records {
		if r.Loadable() {
			out = append(out, r)
		}
	}
	return out
}

func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return idx
}

func requireColumns(cols map[string]int) error {
	for _, name := range []string{colDate, colTitle, colRevenue} {
		if _, ok := cols[name]; !ok {
			return eris.Errorf("ingest: input missing required column %q", name)
		}
	}
	return nil
}

func field(cols map[string]int, row []string, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseRow converts one source row into a RevenueRecord, recording quality
// flags on the summary. Unparsable required fields fail the row.
func parseRow(cols map[string]int, row []string, summary *model.QualitySummary) (model.RevenueRecord, error) {
	var record model.RevenueRecord

	// Required fields first.
	dateStr := field(cols, row, colDate)
	if dateStr == "" {
		return record, eris.New("missing date")
	}
	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return record, eris.Errorf("invalid date %q", dateStr)
	}

	title := field(cols, row, colTitle)
	if title == "" {
		return record, eris.New("missing title")
	}

	revenue := decimal.Zero
	if revStr := field(cols, row, colRevenue); revStr != "" {
		revenue, err = decimal.NewFromString(revStr)
		if err != nil {
			return record, eris.Errorf("invalid revenue %q", revStr)
		}
	}

	record = model.RevenueRecord{
		ID:      field(cols, row, colID),
		Date:    date,
		Title:   title,
		Revenue: revenue,
	}
	if record.ID == "" {
		// Source rows without an identifier get a generated surrogate.
		record.ID = uuid.NewString()
	}

	if revenue.Sign() <= 0 {
		record.Flags.Set(model.FlagZeroRevenue)
		summary.Count(model.FlagZeroRevenue)
	}

	// Theater count: retained as null when absent or non-numeric.
	if theatersStr := field(cols, row, colTheaters); theatersStr != "" {
		if n, err := strconv.Atoi(theatersStr); err == nil && n >= 0 {
			record.Theaters = &n
		}
	}
	if record.Theaters == nil {
		record.Flags.Set(model.FlagEmptyTheaterCount)
		summary.Count(model.FlagEmptyTheaterCount)
	}

	// Distributor: the source uses '-' as an empty placeholder.
	if dist := field(cols, row, colDistributor); dist != "" && dist != "-" {
		record.Distributor = &dist
	} else {
		record.Flags.Set(model.FlagMissingDistributor)
		summary.Count(model.FlagMissingDistributor)
	}

	return record, nil
}
