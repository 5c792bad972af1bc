package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jbweber/ec2backup/internal/config"
	"github.com/jbweber/ec2backup/internal/loader"
)

var configWritePath string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Print the configuration a run would use, after the .env file, the YAML
file, the environment and flags have been applied. AWS is not contacted.

With --write the result is saved as a YAML file that --config accepts.

Examples:
  ec2backup config
  BACKUP_RETENTION=14 ec2backup config --write /etc/ec2backup.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return dumpConfig(os.Stdout, cfg, configWritePath)
	},
}

func init() {
	configCmd.Flags().StringVar(&configWritePath, "write", "", "Write the configuration to this file instead of stdout")
}

// dumpConfig prints cfg as YAML, or saves it to path when one is given.
func dumpConfig(w io.Writer, cfg *config.Config, path string) error {
	if path != "" {
		if err := loader.SaveToFile(cfg, path); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "✓ Configuration written to %s\n", path)
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}
	_, err = w.Write(data)
	return err
}
