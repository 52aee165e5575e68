package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dougneedham/lossdev/internal/model"
)

// Builder builds one named dataset from its sources.
type Builder interface {
	BuildDataset(ctx context.Context, name string, sources []string) (*model.Report, error)
}

// Dataset is one manifest entry: a named group of sources that becomes one
// triangle.
type Dataset struct {
	Name    string
	Sources []string
}

// DatasetResult pairs a dataset with its build outcome.
type DatasetResult struct {
	Dataset Dataset
	Report  *model.Report
	Err     error
}

// BatchRunner builds many datasets concurrently through a pool.
type BatchRunner struct {
	builder     Builder
	concurrency int
}

// NewBatchRunner creates a batch runner.
func NewBatchRunner(builder Builder, concurrency int) *BatchRunner {
	return &BatchRunner{
		builder:     builder,
		concurrency: concurrency,
	}
}

// Run builds every dataset and returns results sorted by dataset name. A
// failed dataset carries its error; it never stops the others.
func (b *BatchRunner) Run(ctx context.Context, datasets []Dataset) []DatasetResult {
	if len(datasets) == 0 {
		return []DatasetResult{}
	}

	pool := NewPool[DatasetResult](ctx, b.concurrency)
	pool.Start()

	for _, ds := range datasets {
		pool.Submit(func(ctx context.Context) DatasetResult {
			report, err := b.builder.BuildDataset(ctx, ds.Name, ds.Sources)
			return DatasetResult{Dataset: ds, Report: report, Err: err}
		})
	}

	results := pool.Wait()
	sort.Slice(results, func(i, j int) bool {
		return results[i].Dataset.Name < results[j].Dataset.Name
	})
	return results
}

// RunManifest reads a manifest file and builds its datasets.
func (b *BatchRunner) RunManifest(ctx context.Context, path string) ([]DatasetResult, error) {
	datasets, err := ReadManifest(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return b.Run(ctx, datasets), nil
}

// ReadManifest parses a dataset manifest: one dataset per line, whitespace
// separated, the first token naming the dataset and the rest its sources.
// Blank lines and # comments are skipped; a repeated name keeps the first
// occurrence.
func ReadManifest(path string) ([]Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer func() { _ = file.Close() }()

	var datasets []Dataset
	seen := make(map[string]bool)
	lineNo := 0

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("manifest line %d: dataset %q has no sources", lineNo, fields[0])
		}

		name := fields[0]
		if seen[name] {
			continue
		}
		seen[name] = true

		datasets = append(datasets, Dataset{Name: name, Sources: fields[1:]})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan manifest: %w", err)
	}

	return datasets, nil
}
