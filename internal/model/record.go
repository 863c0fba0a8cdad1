// Package model defines the domain types shared by the ingest, enrichment,
// and staging layers.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// QualityFlag marks a data-quality anomaly observed on an ingested row.
type QualityFlag string

const (
	FlagEmptyTheaterCount  QualityFlag = "empty_theater_count"
	FlagMissingDistributor QualityFlag = "missing_distributor"
	FlagZeroRevenue        QualityFlag = "zero_revenue"
)

// QualityFlags is the set of flags attached to a single record.
type QualityFlags map[QualityFlag]bool

// Has reports whether the flag is set.
func (f QualityFlags) Has(flag QualityFlag) bool {
	return f[flag]
}

// Set marks the flag, allocating the map if needed.
func (f *QualityFlags) Set(flag QualityFlag) {
	if *f == nil {
		*f = make(QualityFlags, 2)
	}
	(*f)[flag] = true
}

// Slice returns the set flags in a stable order for serialization.
func (f QualityFlags) Slice() []string {
	ordered := []QualityFlag{FlagEmptyTheaterCount, FlagMissingDistributor, FlagZeroRevenue}
	var out []string
	for _, flag := range ordered {
		if f[flag] {
			out = append(out, string(flag))
		}
	}
	return out
}

// RevenueRecord is one observed daily revenue event. Records are immutable
// after ingestion.
type RevenueRecord struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Title       string          `json:"title"`
	Revenue     decimal.Decimal `json:"revenue"`
	Theaters    *int            `json:"theaters"`
	Distributor *string         `json:"distributor"`
	Flags       QualityFlags    `json:"quality_flags,omitempty"`
}

// Loadable reports whether the record belongs in the staged raw-revenue set.
// Zero-revenue rows are tracked for the quality summary but never loaded.
func (r RevenueRecord) Loadable() bool {
	return !r.Flags.Has(FlagZeroRevenue)
}

// QualitySummary aggregates per-flag counts over an ingestion pass.
type QualitySummary struct {
	RowsParsed         int `json:"rows_parsed" yaml:"rows_parsed"`
	RowsFailed         int `json:"rows_failed" yaml:"rows_failed"`
	EmptyTheaterCount  int `json:"empty_theater_count" yaml:"empty_theater_count"`
	MissingDistributor int `json:"missing_distributor" yaml:"missing_distributor"`
	ZeroRevenue        int `json:"zero_revenue" yaml:"zero_revenue"`
}

// Count increments the counter for the given flag.
func (s *QualitySummary) Count(flag QualityFlag) {
	switch flag {
	case FlagEmptyTheaterCount:
		s.EmptyTheaterCount++
	case FlagMissingDistributor:
		s.MissingDistributor++
	case FlagZeroRevenue:
		s.ZeroRevenue++
	}
}

// Candidate is a title selected for metadata enrichment, ranked by total
// revenue across all of its records.
type Candidate struct {
	Title        string          `json:"title"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	Rank         int             `json:"rank"`
	FirstDate    time.Time       `json:"first_date"`
	LastDate     time.Time       `json:"last_date"`
	YearHint     int             `json:"year_hint,omitempty"`
}
