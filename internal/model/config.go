package model

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that marshals to YAML as a human-readable
// string ("30s", "24h") instead of nanoseconds.
type Duration time.Duration

// Std returns the value as a plain time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) { return d.String(), nil }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// NegativeMaturityPolicy says what the builder does with a record whose
// evaluation period precedes its own origin year.
type NegativeMaturityPolicy string

const (
	// PolicyInclude keeps the record's cell in the matrix and reports an
	// anomaly. The default.
	PolicyInclude NegativeMaturityPolicy = "include"
	// PolicyExclude reports the anomaly and defines no cell. The record's
	// origin still registers as a row label.
	PolicyExclude NegativeMaturityPolicy = "exclude"
)

// Config is the full runtime configuration. Precedence: command flags, then
// LOSSDEV_* environment variables, then ~/.lossdev/config.yaml, then these
// defaults.
type Config struct {
	Metric  string        `mapstructure:"metric" yaml:"metric"`
	Verbose bool          `mapstructure:"verbose" yaml:"verbose"`
	Workers int           `mapstructure:"workers" yaml:"workers"`
	Columns ColumnsConfig `mapstructure:"columns" yaml:"columns"`
	Dates   DatesConfig   `mapstructure:"dates" yaml:"dates"`
	HTTP    HTTPConfig    `mapstructure:"http" yaml:"http"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output"`
	Quality QualityConfig `mapstructure:"quality" yaml:"quality"`
}

// ColumnsConfig maps normalized source headers onto canonical fields.
type ColumnsConfig struct {
	LossDate []string            `mapstructure:"loss_date" yaml:"loss_date"`
	FileYear []string            `mapstructure:"file_year" yaml:"file_year"` // optional; filename year is the fallback
	Metrics  map[string][]string `mapstructure:"metrics" yaml:"metrics"`     // canonical metric -> header aliases
}

// DatesConfig holds the loss-date layouts tried in order.
type DatesConfig struct {
	Layouts []string `mapstructure:"layouts" yaml:"layouts"`
}

// HTTPConfig tunes remote source fetching.
type HTTPConfig struct {
	Timeout      Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent    string   `mapstructure:"user_agent" yaml:"user_agent"`
	MaxBodyBytes int64    `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	Retries      int      `mapstructure:"retries" yaml:"retries"` // total attempts for transient failures
	RatePerHost  float64  `mapstructure:"rate_per_host" yaml:"rate_per_host"`
	Burst        int      `mapstructure:"burst" yaml:"burst"`
	HTTPProxy    string   `mapstructure:"http_proxy" yaml:"http_proxy"`
	HTTPSProxy   string   `mapstructure:"https_proxy" yaml:"https_proxy"`
	NoProxy      string   `mapstructure:"no_proxy" yaml:"no_proxy"`
	InsecureTLS  bool     `mapstructure:"insecure_tls" yaml:"insecure_tls"`
}

// CacheConfig tunes the layered fetch cache.
type CacheConfig struct {
	Enabled   bool     `mapstructure:"enabled" yaml:"enabled"`
	Dir       string   `mapstructure:"dir" yaml:"dir"` // empty means the user cache dir
	MemoryTTL Duration `mapstructure:"memory_ttl" yaml:"memory_ttl"`
	DiskTTL   Duration `mapstructure:"disk_ttl" yaml:"disk_ttl"`
}

// OutputConfig controls report rendering.
type OutputConfig struct {
	Dir             string   `mapstructure:"dir" yaml:"dir"`
	Formats         []string `mapstructure:"formats" yaml:"formats"` // json, csv, markdown
	Factors         bool     `mapstructure:"factors" yaml:"factors"`
	FactorPrecision int32    `mapstructure:"factor_precision" yaml:"factor_precision"`
}

// QualityConfig controls anomaly handling.
type QualityConfig struct {
	NegativeMaturity NegativeMaturityPolicy `mapstructure:"negative_maturity" yaml:"negative_maturity"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		Metric:  "paid",
		Workers: 4,
		Columns: ColumnsConfig{
			LossDate: []string{"loss_date", "date_of_loss", "accident_date", "dol"},
			FileYear: []string{"file_year", "evaluation_year", "eval_year"},
			Metrics: map[string][]string{
				"paid":          {"paid", "paid_loss", "paid_losses", "total_paid"},
				"incurred":      {"incurred", "incurred_loss", "total_incurred"},
				"reported":      {"reported", "reported_claims", "claim_count"},
				"case_reserves": {"case_reserves", "case_reserve", "reserves"},
			},
		},
		Dates: DatesConfig{
			Layouts: []string{"2006-01-02", "1/2/2006", "2006/01/02"},
		},
		HTTP: HTTPConfig{
			Timeout:      Duration(30 * time.Second),
			UserAgent:    "lossdev (+https://github.com/dougneedham/lossdev)",
			MaxBodyBytes: 16 << 20,
			Retries:      3,
			RatePerHost:  2,
			Burst:        4,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: Duration(15 * time.Minute),
			DiskTTL:   Duration(24 * time.Hour),
		},
		Output: OutputConfig{
			Dir:             "reports",
			Formats:         []string{"json", "csv", "markdown"},
			FactorPrecision: 4,
		},
		Quality: QualityConfig{
			NegativeMaturity: PolicyInclude,
		},
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Metric == "" {
		return fmt.Errorf("config: metric is empty")
	}
	if len(c.Columns.Metrics[c.Metric]) == 0 {
		return fmt.Errorf("config: metric %q has no column aliases", c.Metric)
	}
	if len(c.Columns.LossDate) == 0 {
		return fmt.Errorf("config: columns.loss_date has no aliases")
	}
	if len(c.Dates.Layouts) == 0 {
		return fmt.Errorf("config: dates.layouts is empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: workers must be at least 1, got %d", c.Workers)
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("config: http.timeout must be positive")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("config: http.max_body_bytes must be positive")
	}
	if c.HTTP.Retries < 0 {
		return fmt.Errorf("config: http.retries must not be negative")
	}
	if c.HTTP.RatePerHost <= 0 {
		return fmt.Errorf("config: http.rate_per_host must be positive")
	}
	if c.HTTP.Burst < 1 {
		return fmt.Errorf("config: http.burst must be at least 1")
	}
	if c.Output.FactorPrecision < 0 {
		return fmt.Errorf("config: output.factor_precision must not be negative")
	}
	for _, f := range c.Output.Formats {
		switch f {
		case "json", "csv", "markdown":
		default:
			return fmt.Errorf("config: unknown output format %q", f)
		}
	}
	switch c.Quality.NegativeMaturity {
	case PolicyInclude, PolicyExclude:
	default:
		return fmt.Errorf("config: unknown quality.negative_maturity policy %q", c.Quality.NegativeMaturity)
	}
	return nil
}
