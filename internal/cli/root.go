package cli

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dougneedham/lossdev/internal/model"
)

const version = "0.3.1"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "lossdev",
	Short: "Loss development triangles from raw loss-run extracts",
	Long: `Lossdev ingests loss-run extracts (CSV/TSV, local files or URLs),
normalizes them, and pivots the records into development triangles:
origin years down, maturity in months across, one aggregated metric
per cell.

A cell is defined by the records that land in it. A cell nothing landed
in is missing, which is not the same as zero. A source is either
ingested completely or rejected with the exact row that broke it.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("lossdev v" + version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.lossdev/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(home + "/.lossdev")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Every config key gets its default registered so LOSSDEV_* variables
	// resolve even when the key is absent from the config file.
	registerDefaults()

	// Read in environment variables that match LOSSDEV_*
	viper.SetEnvPrefix("LOSSDEV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// registerDefaults walks the default configuration into dotted viper keys.
func registerDefaults() {
	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return
	}
	setDefaults("", tree)
}

func setDefaults(prefix string, tree map[string]interface{}) {
	for key, value := range tree {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if sub, ok := value.(map[string]interface{}); ok {
			setDefaults(full, sub)
			continue
		}
		viper.SetDefault(full, value)
	}
}

// loadConfig layers the config file and environment over the defaults.
// Command flags overlay the result afterwards; Validate runs once the
// overlay is complete.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		durationHook(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := viper.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}

	cfg.Verbose = cfg.Verbose || verbose
	return cfg, nil
}

// durationHook decodes "30s" style strings into model.Duration, which the
// default viper hooks will not do for a named type.
func durationHook() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(model.Duration(0))
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if to != durationType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("duration %q: %w", v, err)
			}
			return model.Duration(parsed), nil
		case int:
			return model.Duration(v), nil
		case int64:
			return model.Duration(v), nil
		case float64:
			return model.Duration(int64(v)), nil
		default:
			return data, nil
		}
	}
}
