package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jbweber/ec2backup/internal/backup"
	"github.com/jbweber/ec2backup/internal/cloud"
	"github.com/jbweber/ec2backup/internal/config"
	"github.com/jbweber/ec2backup/internal/loader"
	"github.com/jbweber/ec2backup/internal/logging"
)

var (
	version = "dev"
	commit  = "unknown"
)

// Global flags
var (
	configPath   string
	envFile      string
	outputFormat string
	noHeaders    bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ec2backup",
	Short: "ec2backup - EC2 image backup and retention",
	Long: `ec2backup images EC2 instances carrying a selector tag and removes the
images (and their snapshots) once their retention period has passed.

All state lives in tags on the images themselves: every image is tagged with
LEB-DeleteOn, the date after which the sweep deregisters it.

Per-instance tags:
  BACKUP_REBOOT=false   image without rebooting the instance
  BACKUP_COPYTAG=false  do not copy the instance's tags onto the image`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Load environment variables from this file when it exists")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, yaml, json")
	rootCmd.PersistentFlags().BoolVar(&noHeaders, "no-headers", false, "Omit table headers")
	config.AddFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ec2backup %s (commit: %s)\n", version, commit)
	},
}

// app holds what every workflow command needs.
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	client *cloud.Client
}

// loadConfig builds the configuration from the .env file, the YAML file, the
// environment and the command line, in increasing order of precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg, err := loader.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := config.ApplyFlags(cmd.Flags(), cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return cfg, nil
}

// setup loads configuration, builds the logger and connects to AWS.
func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{Debug: cfg.Debug, Format: cfg.LogFormat})
	if err != nil {
		return nil, err
	}
	logger.Debug("settings", zap.Stringer("config", cfg))

	client, err := cloud.Connect(cmd.Context(), cfg.Region)
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("region", client.Region()))

	return &app{cfg: cfg, log: logger, client: client}, nil
}

// runner builds a Runner for the app.
func (a *app) runner(opts ...backup.Option) *backup.Runner {
	return backup.NewRunner(a.cfg, a.client, a.log, opts...)
}
