package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dougneedham/lossdev/internal/model"
	"github.com/dougneedham/lossdev/internal/pipeline"
)

var (
	datasetName  string
	metricName   string
	outDir       string
	outFormats   []string
	withFactors  bool
	maturityMode string
	buildTimeout time.Duration
	workers      int
	noCache      bool
	insecureTLS  bool
	httpProxy    string
	httpsProxy   string
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build <source>...",
	Short: "Build a development triangle from loss-run extracts",
	Long: `Build ingests one or more loss-run extracts and pivots them into a
development triangle for the chosen metric.

Sources may be files, directories, glob patterns, or http(s) URLs. The
evaluation year comes from a file-year column when the extract carries
one, otherwise from the first year in the source name.

Example:
  lossdev build data/wc_2013.csv data/wc_2014.csv
  lossdev build data/ --metric incurred --factors
  lossdev build 'data/wc_*.csv' --formats json,csv
  lossdev build https://example.com/extracts/wc_2013.csv --verbose`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	// Dataset flags
	buildCmd.Flags().StringVar(&datasetName, "name", "adhoc", "dataset name used in the report and output files")
	buildCmd.Flags().StringVar(&metricName, "metric", "", "metric to aggregate (default from config: paid)")
	buildCmd.Flags().StringVar(&maturityMode, "negative-maturity", "", "negative maturity policy: include or exclude")

	// Output flags
	buildCmd.Flags().StringVar(&outDir, "out", "", "output directory (default from config: reports)")
	buildCmd.Flags().StringSliceVar(&outFormats, "formats", nil, "output formats: json, csv, markdown")
	buildCmd.Flags().BoolVar(&withFactors, "factors", false, "derive age-to-age development factors")

	// HTTP flags
	buildCmd.Flags().DurationVar(&buildTimeout, "timeout", 5*time.Minute, "overall build timeout")
	buildCmd.Flags().IntVar(&workers, "workers", 0, "concurrent source loads (default from config: 4)")
	buildCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the fetch cache (force fresh downloads)")
	buildCmd.Flags().BoolVar(&insecureTLS, "insecure", false, "skip TLS certificate verification (use for self-signed certs)")
	buildCmd.Flags().StringVar(&httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	buildCmd.Flags().StringVar(&httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
}

// applySharedFlags overlays the flags the build-style commands share onto
// the loaded configuration.
func applySharedFlags(cfg *model.Config) {
	if metricName != "" {
		cfg.Metric = metricName
	}
	if maturityMode != "" {
		cfg.Quality.NegativeMaturity = model.NegativeMaturityPolicy(maturityMode)
	}
	if outDir != "" {
		cfg.Output.Dir = outDir
	}
	if len(outFormats) > 0 {
		cfg.Output.Formats = outFormats
	}
	if withFactors {
		cfg.Output.Factors = true
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if insecureTLS {
		cfg.HTTP.InsecureTLS = true
	}
	if httpProxy != "" {
		cfg.HTTP.HTTPProxy = httpProxy
	}
	if httpsProxy != "" {
		cfg.HTTP.HTTPSProxy = httpsProxy
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), buildTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applySharedFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Verbose {
		fmt.Fprintf(os.Stderr, "Building: %s\n", strings.Join(args, " "))
		fmt.Fprintf(os.Stderr, "Metric: %s\n", cfg.Metric)
		fmt.Fprintf(os.Stderr, "Cache: %v\n", cfg.Cache.Enabled)
		fmt.Fprintln(os.Stderr)
	}

	// Create pipeline
	p := pipeline.NewPipeline(cfg)

	report, err := p.BuildDataset(ctx, datasetName, args)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	if cfg.Verbose {
		for _, s := range report.Sources {
			switch {
			case s.Skipped != "":
				fmt.Fprintf(os.Stderr, "✗ %s: %s\n", s.Path, s.Skipped)
			case s.Cached:
				fmt.Fprintf(os.Stderr, "✓ %s: %d records (cached)\n", s.Path, s.Records)
			default:
				fmt.Fprintf(os.Stderr, "✓ %s: %d records\n", s.Path, s.Records)
			}
		}
		fmt.Fprintf(os.Stderr, "✓ Built %d cells from %d records\n", report.Triangle.Cells(), report.Records)
		fmt.Fprintln(os.Stderr)
	}

	// Render outputs
	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	jsonPath, csvPath, mdPath := outputPaths(cfg.Output.Dir, report.Dataset, cfg.Output.Formats)
	if err := p.RenderReport(report, jsonPath, csvPath, mdPath, cfg.Verbose); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	return nil
}

// outputPaths maps the configured formats onto file paths; a format that is
// not requested yields an empty path.
func outputPaths(dir, dataset string, formats []string) (jsonPath, csvPath, mdPath string) {
	base := sanitizeFilename(dataset)
	for _, format := range formats {
		switch format {
		case "json":
			jsonPath = filepath.Join(dir, base+".json")
		case "csv":
			csvPath = filepath.Join(dir, base+".csv")
		case "markdown":
			mdPath = filepath.Join(dir, base+".md")
		}
	}
	return jsonPath, csvPath, mdPath
}
