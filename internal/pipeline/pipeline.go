package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dougneedham/lossdev/internal/cache"
	"github.com/dougneedham/lossdev/internal/ingest"
	"github.com/dougneedham/lossdev/internal/model"
	"github.com/dougneedham/lossdev/internal/quality"
	"github.com/dougneedham/lossdev/internal/triangle"
	"github.com/dougneedham/lossdev/internal/util"
	"github.com/dougneedham/lossdev/internal/worker"
)

// Pipeline orchestrates the complete dataset build
type Pipeline struct {
	reader   *ingest.Reader
	fetcher  *ingest.Fetcher
	builder  *triangle.Builder
	renderer *Renderer
	config   *model.Config
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg *model.Config) *Pipeline {
	var fetchCache cache.Cache
	if cfg.Cache.Enabled {
		dir := cfg.Cache.Dir
		if dir == "" {
			base, err := os.UserCacheDir()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: fetch cache disabled: %v\n", err)
			} else {
				dir = filepath.Join(base, "lossdev")
			}
		}
		if dir != "" {
			fetchCache = cache.NewLayeredCache(cfg.Cache.MemoryTTL.Std(), dir, cfg.Cache.DiskTTL.Std())
		}
	}

	limiter := worker.NewLimiter(cfg.HTTP.RatePerHost, cfg.HTTP.Burst)

	return &Pipeline{
		reader:   ingest.NewReader(cfg.Columns, cfg.Metric),
		fetcher:  ingest.NewFetcher(cfg.HTTP, limiter, fetchCache),
		builder:  triangle.NewBuilder(cfg.Dates.Layouts, cfg.Quality.NegativeMaturity),
		renderer: NewRenderer(),
		config:   cfg,
	}
}

// loadResult carries one source body out of the worker pool.
type loadResult struct {
	index  int
	source ingest.Source
	body   []byte
	cached bool
	err    error
}

// BuildDataset resolves, loads, and parses the named sources, then builds
// the development triangle and its report.
func (p *Pipeline) BuildDataset(ctx context.Context, name string, args []string) (*model.Report, error) {
	// 1. Resolve source arguments to files and URLs
	sources, err := ingest.Resolve(args)
	if err != nil {
		return nil, fmt.Errorf("resolve sources: %w", err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("dataset %q has no sources", name)
	}

	// 2. Load bodies concurrently
	loaded, err := p.loadSources(ctx, sources)
	if err != nil {
		return nil, err
	}

	// 3. Parse each source, dropping duplicate content. Path order keeps
	// record and anomaly ordering reproducible across runs.
	sort.Slice(loaded, func(i, j int) bool { return loaded[i].source.Path < loaded[j].source.Path })

	var (
		records   []model.Record
		summaries []model.SourceSummary
		seen      = make(map[string]string)
	)
	for _, res := range loaded {
		checksum := util.Checksum(res.body)
		summary := model.SourceSummary{
			Path:     res.source.Path,
			FileYear: res.source.FileYear,
			Checksum: checksum,
			Remote:   res.source.Remote,
			Cached:   res.cached,
		}

		// Same bytes under a different evaluation year is a different
		// snapshot, so the year is part of the duplicate key.
		dupKey := fmt.Sprintf("%s-%d", checksum, res.source.FileYear)
		if first, dup := seen[dupKey]; dup {
			summary.Skipped = fmt.Sprintf("duplicate of %s", first)
			summaries = append(summaries, summary)
			continue
		}
		seen[dupKey] = res.source.Path

		parsed, err := p.reader.Read(res.source.Path, res.source.FileYear, res.body)
		if err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
		summary.Records = len(parsed)
		summaries = append(summaries, summary)
		records = append(records, parsed...)
	}

	// 4. Scan records for fatal defects and anomalies
	anomalies, err := quality.Scan(records, p.config.Metric, p.config.Dates.Layouts)
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}

	// 5. Build the triangle
	tri, err := p.builder.Build(records, p.config.Metric)
	if err != nil {
		return nil, fmt.Errorf("build triangle: %w", err)
	}

	// 6. Derive development factors if requested
	var factors *model.FactorSet
	if p.config.Output.Factors {
		factors = triangle.Factors(tri, p.config.Output.FactorPrecision)
	}

	// 7. Assemble the report
	return &model.Report{
		Dataset:     name,
		Metric:      p.config.Metric,
		GeneratedAt: time.Now().UTC(),
		Sources:     summaries,
		Records:     len(records),
		Triangle:    tri,
		Factors:     factors,
		Anomalies:   anomalies,
		CellTotal:   tri.Total(),
	}, nil
}

// loadSources reads local files and fetches remote ones through the worker
// pool. Results come back in source order.
func (p *Pipeline) loadSources(ctx context.Context, sources []ingest.Source) ([]loadResult, error) {
	pool := worker.NewPool[loadResult](ctx, p.config.Workers)
	pool.Start()

	for i, src := range sources {
		pool.Submit(func(ctx context.Context) loadResult {
			res := loadResult{index: i, source: src}
			if src.Remote {
				fetched, err := p.fetcher.FetchWithRetry(ctx, src.Path)
				if err != nil {
					res.err = fmt.Errorf("fetch %s: %w", src.Path, err)
					return res
				}
				res.body = fetched.Body
				res.cached = fetched.Cached
				return res
			}

			body, err := os.ReadFile(src.Path)
			if err != nil {
				res.err = fmt.Errorf("read %s: %w", src.Path, err)
				return res
			}
			res.body = body
			return res
		})
	}

	results := pool.Wait()
	if len(results) != len(sources) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("loaded %d of %d sources", len(results), len(sources))
	}

	loaded := make([]loadResult, len(sources))
	for _, res := range results {
		loaded[res.index] = res
	}
	for _, res := range loaded {
		if res.err != nil {
			return nil, res.err
		}
	}
	return loaded, nil
}

// RenderReport renders the report to the specified outputs
func (p *Pipeline) RenderReport(report *model.Report, jsonPath, csvPath, mdPath string, verbose bool) error {
	if jsonPath != "" {
		if err := p.renderer.RenderJSON(report, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", jsonPath)
		}
	}

	if csvPath != "" {
		if err := p.renderer.RenderCSV(report, csvPath); err != nil {
			return fmt.Errorf("render CSV: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote CSV: %s\n", csvPath)
		}
	}

	if mdPath != "" {
		if err := p.renderer.RenderMarkdown(report, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", mdPath)
		}
	}

	// Print summary to stdout
	p.renderer.RenderSummary(report)

	return nil
}
