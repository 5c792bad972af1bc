package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/ec2backup/internal/config"
	"github.com/jbweber/ec2backup/internal/loader"
)

func newTestCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	config.AddFlags(cmd.Flags())
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func withGlobals(t *testing.T, cfgPath, env string) {
	t.Helper()
	oldConfig, oldEnv := configPath, envFile
	configPath, envFile = cfgPath, env
	t.Cleanup(func() { configPath, envFile = oldConfig, oldEnv })
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()

	configFile := filepath.Join(dir, "ec2backup.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("retention_days: 30\ntag_key: FromFile\nonly_running: true\n"), 0o600))

	withGlobals(t, configFile, "")
	t.Setenv(loader.EnvTag, "FromEnv")
	t.Setenv(loader.EnvRetention, "14")

	cfg, err := loadConfig(newTestCommand(t, "--retention-days", "3"))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.RetentionDays, "flag beats environment")
	assert.Equal(t, "FromEnv", cfg.TagKey, "environment beats file")
	assert.True(t, cfg.OnlyRunning, "file beats defaults")
	assert.Equal(t, config.DefaultWaitTimeout, cfg.WaitTimeout)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("BACKUP_TAG=FromDotEnv\n"), 0o600))

	withGlobals(t, "", envPath)
	// godotenv sets variables directly; register them for cleanup first.
	t.Setenv(loader.EnvTag, "")
	require.NoError(t, os.Unsetenv(loader.EnvTag))

	cfg, err := loadConfig(newTestCommand(t))
	require.NoError(t, err)
	assert.Equal(t, "FromDotEnv", cfg.TagKey)
}

func TestLoadConfig_MissingDotEnvIgnored(t *testing.T) {
	withGlobals(t, "", filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := loadConfig(newTestCommand(t))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTagKey, cfg.TagKey)
}

func TestLoadConfig_InvalidFlag(t *testing.T) {
	withGlobals(t, "", "")

	_, err := loadConfig(newTestCommand(t, "--log-format", "xml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_format")
}

func TestLoadConfig_ZeroRetentionFlag(t *testing.T) {
	withGlobals(t, "", "")

	_, err := loadConfig(newTestCommand(t, "--retention-days", "0"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retention_days")
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"run"},
		{"backup"},
		{"sweep"},
		{"list", "instances"},
		{"list", "expired"},
		{"serve"},
		{"check"},
		{"config"},
		{"version"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestDumpConfig_Stdout(t *testing.T) {
	cfg := config.Default()
	cfg.TagKey = "Nightly"

	var buf bytes.Buffer
	require.NoError(t, dumpConfig(&buf, cfg, ""))

	got, err := loader.LoadFromYAML(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestDumpConfig_WriteReloads(t *testing.T) {
	dir := t.TempDir()
	withGlobals(t, "", "")
	t.Setenv(loader.EnvRetention, "21")

	cfg, err := loadConfig(newTestCommand(t, "--tag", "Weekly"))
	require.NoError(t, err)

	path := filepath.Join(dir, "effective.yaml")
	var buf bytes.Buffer
	require.NoError(t, dumpConfig(&buf, cfg, path))
	assert.Contains(t, buf.String(), path)

	// The written file must load as a --config file and reproduce the settings.
	withGlobals(t, path, "")
	t.Setenv(loader.EnvRetention, "")
	reloaded, err := loadConfig(newTestCommand(t))
	require.NoError(t, err)
	assert.Equal(t, cfg, reloaded)
}
