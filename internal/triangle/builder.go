package triangle

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dougneedham/lossdev/internal/model"
)

// Point is the derived position of a record in the development matrix.
type Point struct {
	Origin   int // calendar year of the loss date
	Maturity int // months between origin and the record's evaluation period
}

// Derive computes a record's matrix position: the loss date is parsed
// against the layouts in order, the origin is the parsed year, and maturity
// is (file year - origin) x 12. Pure and independent of record order.
func Derive(rec model.Record, layouts []string) (Point, error) {
	raw := strings.TrimSpace(rec.LossDate)
	if raw == "" {
		return Point{}, &model.MissingColumnError{Source: rec.Source, Row: rec.Row, Column: "loss_date"}
	}

	for _, layout := range layouts {
		ts, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		origin := ts.Year()
		return Point{Origin: origin, Maturity: (rec.FileYear - origin) * 12}, nil
	}

	return Point{}, &model.DateParseError{Source: rec.Source, Row: rec.Row, Value: raw}
}

// Builder pivots normalized records into a development triangle.
type Builder struct {
	layouts []string
	policy  model.NegativeMaturityPolicy
}

// NewBuilder creates a builder using the given date layouts and
// negative-maturity policy.
func NewBuilder(layouts []string, policy model.NegativeMaturityPolicy) *Builder {
	return &Builder{
		layouts: layouts,
		policy:  policy,
	}
}

// Build aggregates the metric into (origin, maturity) cells. The first
// contribution defines a cell, later ones add to it. Any derivation failure
// or record without the metric aborts the whole build; there is no partial
// result. Axis sorting in the triangle makes the output identical for any
// permutation of records.
func (b *Builder) Build(records []model.Record, metric string) (*model.Triangle, error) {
	cells := make(map[model.Cell]decimal.Decimal)
	var origins []int

	for _, rec := range records {
		pt, err := Derive(rec, b.layouts)
		if err != nil {
			return nil, err
		}

		value, ok := rec.Value(metric)
		if !ok {
			return nil, &model.MissingColumnError{Source: rec.Source, Row: rec.Row, Column: metric}
		}

		if pt.Maturity < 0 && b.policy == model.PolicyExclude {
			// The origin still registers as an all-missing row.
			origins = append(origins, pt.Origin)
			continue
		}

		cell := model.Cell{Origin: pt.Origin, Maturity: pt.Maturity}
		if cur, exists := cells[cell]; exists {
			cells[cell] = cur.Add(value)
		} else {
			cells[cell] = value
		}
	}

	return model.NewTriangle(metric, origins, nil, cells), nil
}
