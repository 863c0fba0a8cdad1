package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reeldata/marquee/internal/model"
)

const header = "id,date,title,revenue,theaters,distributor\n"

func parse(t *testing.T, csvBody string) ([]model.RevenueRecord, *model.QualitySummary) {
	t.Helper()
	records, summary, err := ParseCSV(context.Background(), strings.NewReader(csvBody))
	require.NoError(t, err)
	return records, summary
}

func TestParseCSV_CleanRow(t *testing.T) {
	records, summary := parse(t, header+"r1,2020-01-01,Example Movie,1500.50,120,Studio X\n")

	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, "r1", r.ID)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), r.Date)
	assert.Equal(t, "Example Movie", r.Title)
	assert.True(t, r.Revenue.Equal(decimal.RequireFromString("1500.50")))
	require.NotNil(t, r.Theaters)
	assert.Equal(t, 120, *r.Theaters)
	require.NotNil(t, r.Distributor)
	assert.Equal(t, "Studio X", *r.Distributor)
	assert.Empty(t, r.Flags.Slice())
	assert.Equal(t, 1, summary.RowsParsed)
	assert.Equal(t, 0, summary.RowsFailed)
}

func TestParseCSV_EmptyTheaters_RetainedWithFlag(t *testing.T) {
	// Empty theaters keeps the record, nulls the count,
	// flags it, and the record still loads.
	records, summary := parse(t, header+"r1,2020-01-01,Example Movie,100,,Studio X\n")

	require.Len(t, records, 1)
	r := records[0]
	assert.Nil(t, r.Theaters)
	assert.True(t, r.Flags.Has(model.FlagEmptyTheaterCount))
	assert.True(t, r.Loadable())
	assert.Equal(t, 1, summary.EmptyTheaterCount)
}

func TestParseCSV_NonNumericTheaters_RetainedWithFlag(t *testing.T) {
	records, _ := parse(t, header+"r1,2020-01-01,Example Movie,100,many,Studio X\n")

	require.Len(t, records, 1)
	assert.Nil(t, records[0].Theaters)
	assert.True(t, records[0].Flags.Has(model.FlagEmptyTheaterCount))
}

func TestParseCSV_MissingDistributor(t *testing.T) {
	records, summary := parse(t, header+
		"r1,2020-01-01,A,100,10,\n"+
		"r2,2020-01-02,B,100,10,-\n")

	require.Len(t, records, 2)
	for _, r := range records {
		assert.Nil(t, r.Distributor)
		assert.True(t, r.Flags.Has(model.FlagMissingDistributor))
	}
	assert.Equal(t, 2, summary.MissingDistributor)
}

func TestParseCSV_ZeroRevenue_FlaggedAndExcludedFromLoad(t *testing.T) {
	records, summary := parse(t, header+
		"r1,2020-01-01,A,0,10,Studio X\n"+
		"r2,2020-01-02,B,-5,10,Studio X\n"+
		"r3,2020-01-03,C,,10,Studio X\n"+
		"r4,2020-01-04,D,250,10,Studio X\n")

	require.Len(t, records, 4)
	assert.Equal(t, 3, summary.ZeroRevenue)

	loadable := Filter(records)
	require.Len(t, loadable, 1)
	assert.Equal(t, "D", loadable[0].Title)
}

func TestParseCSV_BadRequiredFields_RowFailsNotRun(t *testing.T) {
	records, summary := parse(t, header+
		"r1,not-a-date,A,100,10,Studio X\n"+
		"r2,2020-01-02,,100,10,Studio X\n"+
		"r3,2020-01-03,C,abc,10,Studio X\n"+
		"r4,2020-01-04,D,400,10,Studio X\n")

	require.Len(t, records, 1)
	assert.Equal(t, "D", records[0].Title)
	assert.Equal(t, 1, summary.RowsParsed)
	assert.Equal(t, 3, summary.RowsFailed)
}

func TestParseCSV_BlankID_GetsSurrogate(t *testing.T) {
	records, _ := parse(t, header+",2020-01-01,A,100,10,Studio X\n")

	require.Len(t, records, 1)
	assert.NotEmpty(t, records[0].ID)
}

func TestParseCSV_ColumnOrderIndependent(t *testing.T) {
	body := "title,revenue,date,id,distributor,theaters\n" +
		"Example Movie,100,2020-01-01,r1,Studio X,120\n"
	records, _ := parse(t, body)

	require.Len(t, records, 1)
	assert.Equal(t, "Example Movie", records[0].Title)
	assert.Equal(t, "r1", records[0].ID)
}

func TestParseCSV_MissingRequiredColumn(t *testing.T) {
	_, _, err := ParseCSV(context.Background(), strings.NewReader("id,date,theaters\nr1,2020-01-01,10\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required column")
}

func TestParseCSV_EmptyInput(t *testing.T) {
	_, _, err := ParseCSV(context.Background(), strings.NewReader(""))
	require.Error(t, err)
}
