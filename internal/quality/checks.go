package quality

import (
	"fmt"

	"github.com/dougneedham/lossdev/internal/model"
	"github.com/dougneedham/lossdev/internal/triangle"
)

// Scan derives every record and collects non-fatal data-quality findings:
// records evaluated before their own origin year, and negative amounts for
// a metric that is cumulative by definition. Derivation failures are not
// findings, they propagate exactly as in the build.
func Scan(records []model.Record, metric string, layouts []string) ([]model.Anomaly, error) {
	anomalies := []model.Anomaly{}

	for _, rec := range records {
		pt, err := triangle.Derive(rec, layouts)
		if err != nil {
			return nil, err
		}

		value, ok := rec.Value(metric)
		if !ok {
			return nil, &model.MissingColumnError{Source: rec.Source, Row: rec.Row, Column: metric}
		}

		if pt.Maturity < 0 {
			anomalies = append(anomalies, model.Anomaly{
				Kind:     model.AnomalyNegativeMaturity,
				Severity: model.SeverityWarning,
				Source:   rec.Source,
				Row:      rec.Row,
				Origin:   pt.Origin,
				Maturity: pt.Maturity,
				Value:    value,
				Detail: fmt.Sprintf("loss dated %s evaluated in %d, %d months before its origin year",
					rec.LossDate, rec.FileYear, -pt.Maturity),
			})
		}

		if value.IsNegative() {
			anomalies = append(anomalies, model.Anomaly{
				Kind:     model.AnomalyNegativeAmount,
				Severity: model.SeverityInfo,
				Source:   rec.Source,
				Row:      rec.Row,
				Origin:   pt.Origin,
				Maturity: pt.Maturity,
				Value:    value,
				Detail:   fmt.Sprintf("negative %s amount %s on a cumulative metric", metric, value),
			})
		}
	}

	return anomalies, nil
}
