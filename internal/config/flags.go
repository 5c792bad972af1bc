package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Flag names shared by every command that runs the workflow.
const (
	FlagRegion        = "region"
	FlagRetentionDays = "retention-days"
	FlagTag           = "tag"
	FlagOnlyRunning   = "only-running"
	FlagDebug         = "debug"
	FlagDryRun        = "dry-run"
	FlagWaitTimeout   = "wait-timeout"
	FlagLogFormat     = "log-format"
)

// AddFlags registers the configuration flags on fs. Defaults shown in help
// are informational; a flag only overrides file and environment values when
// it is set explicitly.
func AddFlags(fs *pflag.FlagSet) {
	fs.String(FlagRegion, "", "AWS region (default: SDK default chain)")
	fs.Int(FlagRetentionDays, DefaultRetentionDays, "Days to keep an image before it expires")
	fs.String(FlagTag, DefaultTagKey, "Tag key selecting instances and images")
	fs.Bool(FlagOnlyRunning, false, "Only back up running instances")
	fs.Bool(FlagDebug, false, "Enable debug logging")
	fs.Bool(FlagDryRun, false, "Log create and delete actions without performing them")
	fs.Duration(FlagWaitTimeout, DefaultWaitTimeout, "Maximum time to wait for a new image to exist")
	fs.String(FlagLogFormat, DefaultLogFormat, "Log format: json or console")
}

// ApplyFlags copies explicitly set flags from fs into cfg.
func ApplyFlags(fs *pflag.FlagSet, cfg *Config) error {
	var err error

	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case FlagRegion:
			cfg.Region, err = fs.GetString(f.Name)
		case FlagRetentionDays:
			cfg.RetentionDays, err = fs.GetInt(f.Name)
		case FlagTag:
			cfg.TagKey, err = fs.GetString(f.Name)
		case FlagOnlyRunning:
			cfg.OnlyRunning, err = fs.GetBool(f.Name)
		case FlagDebug:
			cfg.Debug, err = fs.GetBool(f.Name)
		case FlagDryRun:
			cfg.DryRun, err = fs.GetBool(f.Name)
		case FlagWaitTimeout:
			cfg.WaitTimeout, err = fs.GetDuration(f.Name)
		case FlagLogFormat:
			cfg.LogFormat, err = fs.GetString(f.Name)
		}
		if err != nil {
			err = fmt.Errorf("flag --%s: %w", f.Name, err)
		}
	})

	return err
}
