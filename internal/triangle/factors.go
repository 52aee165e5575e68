package triangle

import (
	"github.com/shopspring/decimal"

	"github.com/dougneedham/lossdev/internal/model"
)

// Factors computes age-to-age link ratios for every adjacent maturity pair.
// An origin qualifies for a pair when both cells are defined and the
// earlier one is non-zero; pairs with no qualifying origin produce no
// column. The weighted factor divides the summed later cells by the summed
// earlier cells over the qualifying origins.
func Factors(t *model.Triangle, precision int32) *model.FactorSet {
	set := &model.FactorSet{
		Metric:    t.Metric(),
		Precision: precision,
		Columns:   []model.FactorColumn{},
	}

	maturities := t.Maturities()
	origins := t.Origins()

	for i := 0; i+1 < len(maturities); i++ {
		from, to := maturities[i], maturities[i+1]
		col := model.FactorColumn{
			From:     from,
			To:       to,
			ByOrigin: make(map[int]decimal.Decimal),
		}
		sumFrom, sumTo := decimal.Zero, decimal.Zero

		for _, origin := range origins {
			earlier, ok := t.At(origin, from)
			if !ok || earlier.IsZero() {
				continue
			}
			later, ok := t.At(origin, to)
			if !ok {
				continue
			}
			col.ByOrigin[origin] = later.DivRound(earlier, precision)
			sumFrom = sumFrom.Add(earlier)
			sumTo = sumTo.Add(later)
		}

		if len(col.ByOrigin) == 0 {
			continue
		}
		if !sumFrom.IsZero() {
			w := sumTo.DivRound(sumFrom, precision)
			col.Weighted = &w
		}
		set.Columns = append(set.Columns, col)
	}

	return set
}
