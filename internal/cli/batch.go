package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dougneedham/lossdev/internal/pipeline"
	"github.com/dougneedham/lossdev/internal/worker"
)

var batchTimeout time.Duration

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <manifest>",
	Short: "Build triangles for multiple datasets from a manifest",
	Long: `Batch reads a dataset manifest and builds every dataset through a shared
worker pool.

Manifest format, one dataset per line:
  name source [source...]
Blank lines and # comments are skipped; a repeated name keeps its first
line. Sources follow the same rules as the build command.

Example:
  lossdev batch datasets.txt
  lossdev batch datasets.txt --workers 8 --out ./triangles
  lossdev batch datasets.txt --metric incurred --factors`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for the whole batch")
	batchCmd.Flags().IntVar(&workers, "workers", 0, "concurrent builds and source loads (default from config: 4)")

	// Shared with the build command
	batchCmd.Flags().StringVar(&metricName, "metric", "", "metric to aggregate (default from config: paid)")
	batchCmd.Flags().StringVar(&maturityMode, "negative-maturity", "", "negative maturity policy: include or exclude")
	batchCmd.Flags().StringVar(&outDir, "out", "", "output directory (default from config: reports)")
	batchCmd.Flags().StringSliceVar(&outFormats, "formats", nil, "output formats: json, csv, markdown")
	batchCmd.Flags().BoolVar(&withFactors, "factors", false, "derive age-to-age development factors")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the fetch cache (force fresh downloads)")
	batchCmd.Flags().BoolVar(&insecureTLS, "insecure", false, "skip TLS certificate verification (use for self-signed certs)")
	batchCmd.Flags().StringVar(&httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	batchCmd.Flags().StringVar(&httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	manifest := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applySharedFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Lossdev Batch Build\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Manifest:     %s\n", manifest)
	fmt.Fprintf(os.Stderr, "  Metric:       %s\n", cfg.Metric)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", cfg.Output.Dir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	// Create output directory
	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	// Create pipeline and batch runner
	p := pipeline.NewPipeline(cfg)
	runner := worker.NewBatchRunner(p, cfg.Workers)

	fmt.Fprintf(os.Stderr, "⚙️  Reading datasets from manifest...\n")
	results, err := runner.RunManifest(ctx, manifest)
	if err != nil {
		return fmt.Errorf("process manifest: %w", err)
	}

	fmt.Fprintf(os.Stderr, "✓ Loaded %d datasets\n", len(results))
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "⚙️  Building datasets with %d workers...\n", cfg.Workers)
	fmt.Fprintf(os.Stderr, "\n")

	// Process results
	renderer := pipeline.NewRenderer()
	successCount := 0
	failureCount := 0
	anomalyCount := 0

	for _, result := range results {
		name := result.Dataset.Name
		if result.Err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", name, result.Err)
			continue
		}

		jsonPath, csvPath, mdPath := outputPaths(cfg.Output.Dir, name, cfg.Output.Formats)
		if jsonPath != "" {
			if err := renderer.RenderJSON(result.Report, jsonPath); err != nil {
				failureCount++
				fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", name, err)
				continue
			}
		}
		if csvPath != "" {
			if err := renderer.RenderCSV(result.Report, csvPath); err != nil {
				failureCount++
				fmt.Fprintf(os.Stderr, "✗ %s: failed to write CSV: %v\n", name, err)
				continue
			}
		}
		if mdPath != "" {
			if err := renderer.RenderMarkdown(result.Report, mdPath); err != nil {
				failureCount++
				fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", name, err)
				continue
			}
		}

		successCount++
		anomalyCount += len(result.Report.Anomalies)
		fmt.Fprintf(os.Stderr, "✓ %s: %d records, %d cells, %s total %s\n",
			name, result.Report.Records, result.Report.Triangle.Cells(),
			result.Report.Metric, result.Report.CellTotal)
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d datasets\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Anomalies: %d\n", anomalyCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", cfg.Output.Dir)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 {
		return fmt.Errorf("%d of %d datasets failed", failureCount, len(results))
	}
	return nil
}

// sanitizeFilename sanitizes a dataset name for use as a filename
func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	s = replacer.Replace(s)

	// Limit length
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		return "dataset"
	}
	return s
}
