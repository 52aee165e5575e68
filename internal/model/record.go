package model

import "github.com/shopspring/decimal"

// Record is one claim observation at one evaluation snapshot, as read from
// a loss run file. LossDate stays raw text on purpose: the triangle builder
// owns date interpretation, so an unparseable date aborts the build rather
// than silently dropping a record at ingestion.
type Record struct {
	FileYear int                        `json:"file_year"` // evaluation period of the source file
	LossDate string                     `json:"loss_date"` // raw date text, parsed at build time
	Values   map[string]decimal.Decimal `json:"values"`    // numeric columns by canonical name
	Source   string                     `json:"source,omitempty"`
	Row      int                        `json:"row,omitempty"` // 1-based data row in Source
}

// Value returns the named metric and whether the record carries it. A blank
// cell in the source leaves the metric unset, which is distinct from a
// recorded zero.
func (r Record) Value(metric string) (decimal.Decimal, bool) {
	v, ok := r.Values[metric]
	return v, ok
}
