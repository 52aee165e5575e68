package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
)

// Cell addresses one triangle entry.
type Cell struct {
	Origin   int // accident year the losses originated in
	Maturity int // months between origin and the evaluation period
}

// Triangle is the development matrix: dense sorted axes over sparse cells.
// A cell absent from the map is "missing", which is distinct from a defined
// sum of zero. The triangle is built once per run from the full record set
// and never mutated afterwards.
type Triangle struct {
	metric     string
	origins    []int
	maturities []int
	cells      map[Cell]decimal.Decimal
}

// NewTriangle assembles a triangle from axis labels and cell sums. Axes are
// the union of the given labels and the ones referenced by cells,
// deduplicated and sorted ascending, so the result does not depend on the
// order sources were read in. Extra axis labels without cells are legal: an
// origin can appear as an all-missing row.
func NewTriangle(metric string, origins, maturities []int, cells map[Cell]decimal.Decimal) *Triangle {
	t := &Triangle{
		metric: metric,
		cells:  make(map[Cell]decimal.Decimal, len(cells)),
	}
	originSet := make(map[int]bool)
	maturitySet := make(map[int]bool)
	for _, o := range origins {
		originSet[o] = true
	}
	for _, m := range maturities {
		maturitySet[m] = true
	}
	for c, v := range cells {
		originSet[c.Origin] = true
		maturitySet[c.Maturity] = true
		t.cells[c] = v
	}
	t.origins = sortedKeys(originSet)
	t.maturities = sortedKeys(maturitySet)
	return t
}

func sortedKeys(set map[int]bool) []int {
	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Metric returns the canonical name of the aggregated column.
func (t *Triangle) Metric() string { return t.metric }

// Origins returns the row labels, ascending. The slice is a copy.
func (t *Triangle) Origins() []int {
	out := make([]int, len(t.origins))
	copy(out, t.origins)
	return out
}

// Maturities returns the column labels in months, ascending. The slice is a
// copy.
func (t *Triangle) Maturities() []int {
	out := make([]int, len(t.maturities))
	copy(out, t.maturities)
	return out
}

// At returns the cell sum for (origin, maturity). ok is false when no
// record contributed to the cell; a defined zero reports ok true.
func (t *Triangle) At(origin, maturity int) (decimal.Decimal, bool) {
	v, ok := t.cells[Cell{Origin: origin, Maturity: maturity}]
	return v, ok
}

// Cells returns how many cells are defined.
func (t *Triangle) Cells() int { return len(t.cells) }

// Empty reports whether the triangle has no axis labels at all, the result
// of building from an empty record set.
func (t *Triangle) Empty() bool {
	return len(t.origins) == 0 && len(t.maturities) == 0
}

// Total returns the sum of all defined cells. Aggregation conserves the
// metric, so this equals the metric total over the contributing records.
func (t *Triangle) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range t.cells {
		sum = sum.Add(v)
	}
	return sum
}

// Latest returns the most mature defined cell for an origin. ok is false
// when the origin's row is entirely missing.
func (t *Triangle) Latest(origin int) (maturity int, value decimal.Decimal, ok bool) {
	for i := len(t.maturities) - 1; i >= 0; i-- {
		if v, found := t.At(origin, t.maturities[i]); found {
			return t.maturities[i], v, true
		}
	}
	return 0, decimal.Zero, false
}

// triangleJSON is the wire form. Cell keys are decimal strings of the axis
// labels; amounts serialize as decimal strings. A key absent from the
// nested maps is a missing cell.
type triangleJSON struct {
	Metric     string                                `json:"metric"`
	Origins    []int                                 `json:"origins"`
	Maturities []int                                 `json:"maturities"`
	Cells      map[string]map[string]decimal.Decimal `json:"cells"`
}

// MarshalJSON implements json.Marshaler.
func (t *Triangle) MarshalJSON() ([]byte, error) {
	wire := triangleJSON{
		Metric:     t.metric,
		Origins:    t.Origins(),
		Maturities: t.Maturities(),
		Cells:      make(map[string]map[string]decimal.Decimal, len(t.origins)),
	}
	for c, v := range t.cells {
		row := strconv.Itoa(c.Origin)
		if wire.Cells[row] == nil {
			wire.Cells[row] = make(map[string]decimal.Decimal)
		}
		wire.Cells[row][strconv.Itoa(c.Maturity)] = v
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler. Axes are re-sorted and
// re-unioned with the cells so a decoded triangle holds the same invariants
// as a built one.
func (t *Triangle) UnmarshalJSON(data []byte) error {
	var wire triangleJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	cells := make(map[Cell]decimal.Decimal)
	for row, cols := range wire.Cells {
		origin, err := strconv.Atoi(row)
		if err != nil {
			return fmt.Errorf("triangle cells: bad origin key %q: %w", row, err)
		}
		for col, v := range cols {
			maturity, err := strconv.Atoi(col)
			if err != nil {
				return fmt.Errorf("triangle cells: bad maturity key %q: %w", col, err)
			}
			cells[Cell{Origin: origin, Maturity: maturity}] = v
		}
	}
	*t = *NewTriangle(wire.Metric, wire.Origins, wire.Maturities, cells)
	return nil
}
