package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report is the complete output of one dataset build: where the records
// came from, the triangle, its development factors, and every data-quality
// finding surfaced along the way.
type Report struct {
	Dataset     string    `json:"dataset"`      // dataset name ("adhoc" for direct builds)
	Metric      string    `json:"metric"`       // canonical metric column aggregated
	GeneratedAt time.Time `json:"generated_at"` // when the build ran

	Sources []SourceSummary `json:"sources"` // every resolved source, including skipped ones
	Records int             `json:"records"` // normalized records ingested

	Triangle  *Triangle       `json:"triangle"`
	Factors   *FactorSet      `json:"factors,omitempty"`   // present with --factors
	Anomalies []Anomaly       `json:"anomalies,omitempty"` // non-fatal findings
	CellTotal decimal.Decimal `json:"cell_total"`          // sum of defined cells
}

// SourceSummary records how one resolved source was handled.
type SourceSummary struct {
	Path     string `json:"path"`
	FileYear int    `json:"file_year,omitempty"` // evaluation period, 0 when the source was skipped
	Records  int    `json:"records"`
	Checksum string `json:"checksum,omitempty"` // xxhash of the raw content
	Remote   bool   `json:"remote,omitempty"`
	Cached   bool   `json:"cached,omitempty"`  // served from the fetch cache
	Skipped  string `json:"skipped,omitempty"` // reason the source contributed nothing
}

// Anomaly is a non-fatal data-quality finding. Anomalies are data, not
// errors: the build completes and reports them alongside the triangle.
type Anomaly struct {
	Kind     AnomalyKind     `json:"kind"`
	Severity Severity        `json:"severity"`
	Source   string          `json:"source,omitempty"`
	Row      int             `json:"row,omitempty"`
	Origin   int             `json:"origin"`
	Maturity int             `json:"maturity"`
	Value    decimal.Decimal `json:"value"`
	Detail   string          `json:"detail"` // human-readable description
}

// AnomalyKind classifies a data-quality finding.
type AnomalyKind string

const (
	AnomalyNegativeMaturity AnomalyKind = "negative_maturity" // record evaluated before its own origin period
	AnomalyNegativeAmount   AnomalyKind = "negative_amount"   // negative value for a cumulative metric
)

// Severity indicates how seriously a finding should be taken.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// FactorSet holds the age-to-age development factors derived from one
// triangle.
type FactorSet struct {
	Metric    string         `json:"metric"`
	Precision int32          `json:"precision"` // decimal places of each ratio
	Columns   []FactorColumn `json:"columns"`
}

// FactorColumn holds the link ratios for one adjacent maturity pair. An
// origin qualifies when both cells are defined and the earlier one is
// non-zero. Weighted is nil in the degenerate case where the qualifying
// earlier cells sum to zero.
type FactorColumn struct {
	From     int                     `json:"from"` // earlier maturity, months
	To       int                     `json:"to"`   // later maturity, months
	ByOrigin map[int]decimal.Decimal `json:"by_origin"`
	Weighted *decimal.Decimal        `json:"weighted,omitempty"`
}
