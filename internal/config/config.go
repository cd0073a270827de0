package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("dataDir", "./replays")

	viper.SetDefault("source.serverUrl", "https://tagpro.koalabeast.com")

	viper.SetDefault("leaderboard.serverUrl", "http://localhost:5000")
	viper.SetDefault("leaderboard.password", "")

	viper.SetDefault("catalog.csvUrl", "")
	viper.SetDefault("catalog.cacheTtl", "6h")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "records")
	viper.SetDefault("db.sqlitePath", "./records.db")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "tracker-metrics")
	viper.SetDefault("influx.backupPath", "./influx_backup.gz")

	viper.SetDefault("service.passInterval", "5m")
	viper.SetDefault("service.retryDelay", "1m")

	viper.SetConfigName("wrtracker.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}
