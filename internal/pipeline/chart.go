package pipeline

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/lipgloss"

	"github.com/dougneedham/lossdev/internal/model"
)

const (
	chartWidth  = 30
	chartHeight = 1
)

var (
	chartTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	chartLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	chartValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	chartLineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))

	chartDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

// RenderChart renders one sparkline per origin year showing how the metric
// develops across maturities, with the latest defined value alongside.
func (r *Renderer) RenderChart(t *model.Triangle) string {
	if t.Empty() {
		return chartDimStyle.Render("no cells to plot") + "\n"
	}

	var b strings.Builder
	b.WriteString(chartTitleStyle.Render(fmt.Sprintf("%s development by origin year", t.Metric())))
	b.WriteString("\n\n")

	for _, origin := range t.Origins() {
		b.WriteString(r.originSparkline(t, origin))
		b.WriteString("\n")
	}
	return b.String()
}

// originSparkline draws one origin row: label, sparkline over the defined
// cells in maturity order, latest value.
func (r *Renderer) originSparkline(t *model.Triangle, origin int) string {
	var values []float64
	for _, m := range t.Maturities() {
		if v, ok := t.At(origin, m); ok {
			f, _ := v.Float64()
			values = append(values, f)
		}
	}

	label := chartLabelStyle.Render(fmt.Sprintf("  %d  ", origin))
	if len(values) == 0 {
		return label + chartDimStyle.Render(fmt.Sprintf("%*s", chartWidth, "no data"))
	}

	spark := sparkline.New(chartWidth, chartHeight)
	for _, v := range values {
		spark.Push(v)
	}

	maturity, latest, _ := t.Latest(origin)
	return label +
		chartLineStyle.Render(spark.View()) +
		"  " + chartValueStyle.Render(latest.String()) +
		chartDimStyle.Render(fmt.Sprintf(" at %d months", maturity))
}
