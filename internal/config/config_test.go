package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{
		"logLevel": "debug",
		"dataDir": "/var/lib/wrtracker/replays",
		"db": { "host": "10.0.0.1", "port": "5433" },
		"leaderboard": { "password": "hunter2" }
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrtracker.cfg.json"), []byte(cfg), 0644))

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "/var/lib/wrtracker/replays", viper.GetString("dataDir"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
	assert.Equal(t, "hunter2", viper.GetString("leaderboard.password"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrtracker.cfg.json"), []byte(`{}`), 0644))

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./replays", viper.GetString("dataDir"))
	assert.Equal(t, "https://tagpro.koalabeast.com", viper.GetString("source.serverUrl"))
	assert.Equal(t, "http://localhost:5000", viper.GetString("leaderboard.serverUrl"))
	assert.Equal(t, "", viper.GetString("leaderboard.password"))
	assert.Equal(t, "6h", viper.GetString("catalog.cacheTtl"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "5432", viper.GetString("db.port"))
	assert.Equal(t, "postgres", viper.GetString("db.username"))
	assert.Equal(t, "postgres", viper.GetString("db.password"))
	assert.Equal(t, "records", viper.GetString("db.database"))
	assert.Equal(t, "./records.db", viper.GetString("db.sqlitePath"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, "tracker-metrics", viper.GetString("influx.org"))
	assert.Equal(t, "5m", viper.GetString("service.passInterval"))
	assert.Equal(t, "1m", viper.GetString("service.retryDelay"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testInt", 42)
	assert.Equal(t, 42, GetInt("testInt"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testBool", true)
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetDuration(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testDuration", "90s")
	assert.Equal(t, 90*time.Second, GetDuration("testDuration"))
}
