// Package loader assembles a config.Config from a YAML file and the
// process environment.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/ec2backup/internal/config"
)

// Environment variable names. The BACKUP_* names are the ones existing Lambda
// function configurations already set.
const (
	EnvRegion          = "AWS_REGION"
	EnvRetention       = "BACKUP_RETENTION"
	EnvTag             = "BACKUP_TAG"
	EnvOnlyRunning     = "BACKUP_ONLYRUNNING"
	EnvDebug           = "BACKUP_DEBUG"
	EnvDryRun          = "BACKUP_DRYRUN"
	EnvWaitTimeout     = "BACKUP_WAIT_TIMEOUT"
	EnvPageSize        = "BACKUP_PAGE_SIZE"
	EnvLogFormat       = "BACKUP_LOG_FORMAT"
	EnvPolicyDiscovery = "BACKUP_POLICY_DISCOVERY"
	EnvPolicyCreate    = "BACKUP_POLICY_CREATE"
	EnvPolicyDelete    = "BACKUP_POLICY_DELETE"
	EnvSchedule        = "BACKUP_SCHEDULE"
	EnvMetricsAddr     = "BACKUP_METRICS_ADDR"
)

// LookupFunc matches os.LookupEnv. Tests pass a map-backed lookup.
type LookupFunc func(key string) (string, bool)

// Load builds a configuration from an optional YAML file plus the process
// environment. An empty path skips the file. Defaults are applied and the
// result is validated.
func Load(path string) (*config.Config, error) {
	return LoadWithLookup(path, os.LookupEnv)
}

// LoadWithLookup is Load with an injectable environment.
func LoadWithLookup(path string, lookup LookupFunc) (*config.Config, error) {
	cfg := &config.Config{}

	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	if err := ApplyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFromFile reads a YAML configuration file without applying defaults.
func LoadFromFile(path string) (*config.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	return LoadFromYAML(data)
}

// LoadFromYAML parses YAML bytes into a configuration without applying
// defaults. Unknown fields are rejected.
func LoadFromYAML(data []byte) (*config.Config, error) {
	var cfg config.Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	// A zero in the struct cannot be told apart from an omitted key.
	var explicit struct {
		RetentionDays *int `yaml:"retention_days"`
	}
	if err := yaml.Unmarshal(data, &explicit); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	if explicit.RetentionDays != nil && *explicit.RetentionDays < 1 {
		return nil, fmt.Errorf("retention_days must be > 0, got %d", *explicit.RetentionDays)
	}

	return &cfg, nil
}

// SaveToFile writes a configuration as YAML. The output loads back through
// LoadFromFile unchanged.
func SaveToFile(cfg *config.Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	return nil
}

// ApplyEnv overrides cfg with values found through lookup.
//
// Boolean switches are enabled only by the exact string "true"; any other
// value disables them. Numbers, durations and policies that fail to parse
// are errors.
func ApplyEnv(cfg *config.Config, lookup LookupFunc) error {
	if v, ok := lookup(EnvRegion); ok && v != "" {
		cfg.Region = v
	}
	if v, ok := lookup(EnvRetention); ok && v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", EnvRetention, v)
		}
		if days < 1 {
			return fmt.Errorf("%s: must be > 0, got %d", EnvRetention, days)
		}
		cfg.RetentionDays = days
	}
	if v, ok := lookup(EnvTag); ok && v != "" {
		cfg.TagKey = v
	}
	if v, ok := lookup(EnvOnlyRunning); ok {
		cfg.OnlyRunning = v == "true"
	}
	if v, ok := lookup(EnvDebug); ok {
		cfg.Debug = v == "true"
	}
	if v, ok := lookup(EnvDryRun); ok {
		cfg.DryRun = v == "true"
	}
	if v, ok := lookup(EnvWaitTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: invalid duration %q", EnvWaitTimeout, v)
		}
		cfg.WaitTimeout = d
	}
	if v, ok := lookup(EnvPageSize); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", EnvPageSize, v)
		}
		cfg.PageSize = n
	}
	if v, ok := lookup(EnvLogFormat); ok && v != "" {
		cfg.LogFormat = v
	}
	if v, ok := lookup(EnvPolicyDiscovery); ok && v != "" {
		cfg.Policies.Discovery = config.FailurePolicy(v)
	}
	if v, ok := lookup(EnvPolicyCreate); ok && v != "" {
		cfg.Policies.Create = config.FailurePolicy(v)
	}
	if v, ok := lookup(EnvPolicyDelete); ok && v != "" {
		cfg.Policies.Delete = config.FailurePolicy(v)
	}
	if v, ok := lookup(EnvSchedule); ok && v != "" {
		cfg.Schedule = v
	}
	if v, ok := lookup(EnvMetricsAddr); ok && v != "" {
		cfg.MetricsAddr = v
	}

	return nil
}
