package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/ec2backup/internal/output"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List instances or expired images",
	Long: `Read-only views of what the next run would act on.

Output formats:
  -o table  Human-readable table (default)
  -o yaml   YAML documents
  -o json   JSON array`,
}

func init() {
	listCmd.AddCommand(listInstancesCmd)
	listCmd.AddCommand(listExpiredCmd)
}

var listInstancesCmd = &cobra.Command{
	Use:   "instances",
	Short: "List instances selected for backup",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		a, err := setup(cmd)
		if err != nil {
			return err
		}

		instances, err := a.runner().ListInstances(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list instances: %w", err)
		}

		result, err := formatter.FormatInstances(instances)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}

		fmt.Print(result)
		return nil
	},
}

var listExpiredCmd = &cobra.Command{
	Use:   "expired",
	Short: "List images the next sweep would delete",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		a, err := setup(cmd)
		if err != nil {
			return err
		}

		images, err := a.runner().ListExpiredImages(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list expired images: %w", err)
		}

		result, err := formatter.FormatImages(images)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}

		fmt.Print(result)
		return nil
	},
}

func newFormatter() (output.Formatter, error) {
	if err := output.ValidateFormat(outputFormat); err != nil {
		return nil, err
	}
	return output.NewFormatter(output.Options{
		Format:    output.Format(outputFormat),
		NoHeaders: noHeaders,
	})
}
