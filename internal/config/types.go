package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Defaults for optional settings.
const (
	DefaultRetentionDays = 7
	DefaultTagKey        = "BackupIT"
	DefaultWaitTimeout   = 60 * time.Minute
	DefaultPageSize      = 1000
	DefaultLogFormat     = "json"
	DefaultSchedule      = "0 3 * * *"
	DefaultMetricsAddr   = ":9090"

	// EC2 describe calls accept MaxResults between 5 and 1000.
	minPageSize = 5
	maxPageSize = 1000
)

// FailurePolicy decides what a failed operation does to the rest of a run.
type FailurePolicy string

const (
	// PolicyAbort stops the run; the entry point exits nonzero.
	PolicyAbort FailurePolicy = "abort"
	// PolicySkip logs the failure and continues with the next item.
	PolicySkip FailurePolicy = "skip"
	// PolicyCollect continues like PolicySkip and reports the failure as
	// part of the run's returned error.
	PolicyCollect FailurePolicy = "collect"
)

// Validate checks the policy is one of the known values.
func (p FailurePolicy) Validate() error {
	switch p {
	case PolicyAbort, PolicySkip, PolicyCollect:
		return nil
	default:
		return fmt.Errorf("invalid failure policy %q (valid: abort, skip, collect)", p)
	}
}

// Policies assigns a failure policy to each operation class.
type Policies struct {
	// Discovery covers listing instances, images and snapshots.
	Discovery FailurePolicy `yaml:"discovery,omitempty"`
	// Create covers the existence check, image creation, waiting and tagging.
	Create FailurePolicy `yaml:"create,omitempty"`
	// Delete covers image deregistration and snapshot deletion.
	Delete FailurePolicy `yaml:"delete,omitempty"`
}

// Config is the complete runtime configuration for a backup run.
type Config struct {
	Region        string        `yaml:"region,omitempty"`
	RetentionDays int           `yaml:"retention_days"`
	TagKey        string        `yaml:"tag_key"`
	OnlyRunning   bool          `yaml:"only_running"`
	Debug         bool          `yaml:"debug"`
	DryRun        bool          `yaml:"dry_run"`
	WaitTimeout   time.Duration `yaml:"wait_timeout"`
	PageSize      int           `yaml:"page_size"`
	LogFormat     string        `yaml:"log_format"`
	Policies      Policies      `yaml:"policies"`

	// Serve mode only
	Schedule    string `yaml:"schedule,omitempty"`
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields. A zero RetentionDays means unset; the
// loader rejects an explicit zero from a file or the environment before
// defaults are applied, and Validate rejects one from a flag.
func (c *Config) ApplyDefaults() {
	if c.RetentionDays == 0 {
		c.RetentionDays = DefaultRetentionDays
	}
	if c.TagKey == "" {
		c.TagKey = DefaultTagKey
	}
	if c.WaitTimeout == 0 {
		c.WaitTimeout = DefaultWaitTimeout
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.Policies.Discovery == "" {
		c.Policies.Discovery = PolicyAbort
	}
	if c.Policies.Create == "" {
		c.Policies.Create = PolicySkip
	}
	if c.Policies.Delete == "" {
		c.Policies.Delete = PolicyCollect
	}
	if c.Schedule == "" {
		c.Schedule = DefaultSchedule
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = DefaultMetricsAddr
	}
}

// Validate checks the configuration for errors.
// It does not contact AWS; region validity is left to the SDK.
func (c *Config) Validate() error {
	if c.RetentionDays < 1 {
		return fmt.Errorf("retention_days must be > 0, got %d", c.RetentionDays)
	}
	if strings.TrimSpace(c.TagKey) == "" {
		return fmt.Errorf("tag_key is required")
	}
	if c.WaitTimeout <= 0 {
		return fmt.Errorf("wait_timeout must be > 0, got %s", c.WaitTimeout)
	}
	if c.PageSize < minPageSize || c.PageSize > maxPageSize {
		return fmt.Errorf("page_size must be between %d and %d, got %d", minPageSize, maxPageSize, c.PageSize)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log_format must be json or console, got %q", c.LogFormat)
	}

	if err := c.Policies.Discovery.Validate(); err != nil {
		return fmt.Errorf("policies.discovery: %w", err)
	}
	if err := c.Policies.Create.Validate(); err != nil {
		return fmt.Errorf("policies.create: %w", err)
	}
	if err := c.Policies.Delete.Validate(); err != nil {
		return fmt.Errorf("policies.delete: %w", err)
	}

	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", c.Schedule, err)
		}
	}

	return nil
}

// String renders the settings for the startup debug line.
func (c *Config) String() string {
	return fmt.Sprintf("REGION=%s BACKUP_RETENTION=%d BACKUP_TAG=%s BACKUP_ONLYRUNNING=%t BACKUP_DRYRUN=%t",
		c.Region, c.RetentionDays, c.TagKey, c.OnlyRunning, c.DryRun)
}
