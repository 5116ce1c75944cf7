// Package config loads Opsight configuration and builds the logger.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Load reads configuration from a file and environment variables.
// When configPath is empty, an opsight.yaml is searched in the usual
// locations; a missing file is not an error (defaults apply).
func Load(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.path", "./data/opsight.db")
	v.SetDefault("input.path", "./data/export_table.log")

	// Analysis defaults. Scoring uses a long lag horizon; the diagnostic
	// ACF endpoint defaults to a shorter one suitable for inspection.
	v.SetDefault("analysis.scoring_max_lag", 360)
	v.SetDefault("analysis.diagnostic_max_lag", 40)
	v.SetDefault("analysis.min_series_length", 10)
	v.SetDefault("analysis.threshold_multiplier", 3.0)
	v.SetDefault("analysis.interval", "0s")

	v.SetDefault("report.output_dir", "./outputs")

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.access_token_ttl", "15m")

	v.SetDefault("webhook.enabled", false)
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.timeout", "10s")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("opsight")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/opsight")
	}

	// Environment variable support: OPS_SERVER_PORT=9090
	v.SetEnvPrefix("OPS")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
