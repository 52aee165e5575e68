package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dougneedham/lossdev/internal/pipeline"
)

var plotTimeout time.Duration

// plotCmd represents the plot command
var plotCmd = &cobra.Command{
	Use:   "plot <source>...",
	Short: "Plot per-origin development sparklines in the terminal",
	Long: `Plot builds the triangle exactly like the build command, then renders
one sparkline per origin year showing how the metric develops across
maturities, with the latest defined value alongside.

Example:
  lossdev plot data/
  lossdev plot data/ --metric incurred
  lossdev plot 'data/wc_*.csv'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlot,
}

func init() {
	rootCmd.AddCommand(plotCmd)

	plotCmd.Flags().DurationVar(&plotTimeout, "timeout", 5*time.Minute, "overall build timeout")
	plotCmd.Flags().StringVar(&metricName, "metric", "", "metric to aggregate (default from config: paid)")
	plotCmd.Flags().StringVar(&maturityMode, "negative-maturity", "", "negative maturity policy: include or exclude")
	plotCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the fetch cache (force fresh downloads)")
}

func runPlot(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), plotTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applySharedFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	p := pipeline.NewPipeline(cfg)
	report, err := p.BuildDataset(ctx, "adhoc", args)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	fmt.Print(pipeline.NewRenderer().RenderChart(report.Triangle))

	if len(report.Anomalies) > 0 {
		fmt.Fprintf(os.Stderr, "\nWarning: %d data anomalies found; run lossdev build for the full report\n", len(report.Anomalies))
	}
	return nil
}
