package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/dougneedham/lossdev/internal/model"
)

// Renderer writes reports as JSON, CSV, and Markdown, and prints the
// terminal summary.
type Renderer struct{}

// NewRenderer creates a new renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderJSON writes the full report as indented JSON.
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RenderCSV writes the triangle grid. Missing cells become empty fields,
// never "0": a defined zero and an absent cell must stay distinguishable.
func (r *Renderer) RenderCSV(report *model.Report, path string) error {
	t := report.Triangle
	maturities := t.Maturities()

	rows := make([][]string, 0, len(t.Origins())+1)
	header := []string{"origin"}
	for _, m := range maturities {
		header = append(header, strconv.Itoa(m))
	}
	rows = append(rows, header)

	for _, origin := range t.Origins() {
		row := []string{strconv.Itoa(origin)}
		for _, m := range maturities {
			if v, ok := t.At(origin, m); ok {
				row = append(row, v.String())
			} else {
				row = append(row, "")
			}
		}
		rows = append(rows, row)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// RenderMarkdown writes the report as a Markdown document. Missing triangle
// cells render as "·".
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", report.Dataset)
	fmt.Fprintf(&b, "Development triangle for `%s`, generated %s.\n\n",
		report.Metric, report.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "- Records: %d across %d sources\n", report.Records, len(report.Sources))
	fmt.Fprintf(&b, "- Cell total: %s\n\n", report.CellTotal.String())

	b.WriteString("## Triangle\n\n")
	r.writeTriangleTable(&b, report.Triangle)

	if report.Factors != nil && len(report.Factors.Columns) > 0 {
		b.WriteString("\n## Development factors\n\n")
		r.writeFactorTable(&b, report.Factors)
	}

	if len(report.Anomalies) > 0 {
		b.WriteString("\n## Anomalies\n\n")
		for _, a := range report.Anomalies {
			fmt.Fprintf(&b, "- %s %s row %d: %s\n", a.Severity, a.Source, a.Row, a.Detail)
		}
	}

	b.WriteString("\n## Sources\n\n")
	for _, s := range report.Sources {
		switch {
		case s.Skipped != "":
			fmt.Fprintf(&b, "- %s: skipped (%s)\n", s.Path, s.Skipped)
		case s.Cached:
			fmt.Fprintf(&b, "- %s: %d records (cached)\n", s.Path, s.Records)
		default:
			fmt.Fprintf(&b, "- %s: %d records\n", s.Path, s.Records)
		}
	}

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (r *Renderer) writeTriangleTable(b *strings.Builder, t *model.Triangle) {
	if t.Empty() {
		b.WriteString("No cells.\n")
		return
	}

	maturities := t.Maturities()

	b.WriteString("| origin |")
	for _, m := range maturities {
		fmt.Fprintf(b, " %d |", m)
	}
	b.WriteString("\n| ---: |")
	for range maturities {
		b.WriteString(" ---: |")
	}
	b.WriteString("\n")

	for _, origin := range t.Origins() {
		fmt.Fprintf(b, "| %d |", origin)
		for _, m := range maturities {
			if v, ok := t.At(origin, m); ok {
				fmt.Fprintf(b, " %s |", v.String())
			} else {
				b.WriteString(" · |")
			}
		}
		b.WriteString("\n")
	}
}

func (r *Renderer) writeFactorTable(b *strings.Builder, fs *model.FactorSet) {
	origins := make(map[int]bool)
	for _, col := range fs.Columns {
		for origin := range col.ByOrigin {
			origins[origin] = true
		}
	}
	sorted := make([]int, 0, len(origins))
	for origin := range origins {
		sorted = append(sorted, origin)
	}
	sort.Ints(sorted)

	b.WriteString("| origin |")
	for _, col := range fs.Columns {
		fmt.Fprintf(b, " %d-%d |", col.From, col.To)
	}
	b.WriteString("\n| ---: |")
	for range fs.Columns {
		b.WriteString(" ---: |")
	}
	b.WriteString("\n")

	for _, origin := range sorted {
		fmt.Fprintf(b, "| %d |", origin)
		for _, col := range fs.Columns {
			if v, ok := col.ByOrigin[origin]; ok {
				fmt.Fprintf(b, " %s |", v.StringFixed(fs.Precision))
			} else {
				b.WriteString(" · |")
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("| weighted |")
	for _, col := range fs.Columns {
		if col.Weighted != nil {
			fmt.Fprintf(b, " %s |", col.Weighted.StringFixed(fs.Precision))
		} else {
			b.WriteString(" · |")
		}
	}
	b.WriteString("\n")
}

// RenderSummary prints the dataset summary block to stdout.
func (r *Renderer) RenderSummary(report *model.Report) {
	skipped := 0
	for _, s := range report.Sources {
		if s.Skipped != "" {
			skipped++
		}
	}

	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  Dataset: %s (%s)\n", report.Dataset, report.Metric)
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Println()

	if skipped > 0 {
		fmt.Printf("  Sources:     %d (%d skipped)\n", len(report.Sources), skipped)
	} else {
		fmt.Printf("  Sources:     %d\n", len(report.Sources))
	}
	fmt.Printf("  Records:     %d\n", report.Records)

	if report.Triangle.Empty() {
		fmt.Printf("  Triangle:    empty\n")
	} else {
		fmt.Printf("  Origins:     %s\n", rangeLabel(report.Triangle.Origins()))
		fmt.Printf("  Maturities:  %s months\n", rangeLabel(report.Triangle.Maturities()))
		fmt.Printf("  Cells:       %d defined\n", report.Triangle.Cells())
		fmt.Printf("  Cell total:  %s\n", report.CellTotal.String())
	}

	fmt.Printf("  Anomalies:   %s\n", anomalyLabel(report.Anomalies))
	fmt.Println()
}

// rangeLabel renders a sorted label slice as "first-last".
func rangeLabel(labels []int) string {
	if len(labels) == 0 {
		return "none"
	}
	if len(labels) == 1 {
		return strconv.Itoa(labels[0])
	}
	return fmt.Sprintf("%d-%d", labels[0], labels[len(labels)-1])
}

// anomalyLabel counts anomalies by severity, worst first.
func anomalyLabel(anomalies []model.Anomaly) string {
	if len(anomalies) == 0 {
		return "none"
	}

	counts := make(map[model.Severity]int)
	for _, a := range anomalies {
		counts[a.Severity]++
	}

	var parts []string
	for _, sev := range []model.Severity{model.SeverityCritical, model.SeverityWarning, model.SeverityInfo} {
		if n := counts[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, sev))
		}
	}
	return strings.Join(parts, ", ")
}
