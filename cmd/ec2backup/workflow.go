package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jbweber/ec2backup/internal/backup"
	"github.com/jbweber/ec2backup/internal/output"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Back up tagged instances, then delete expired images",
	Long: `Run the full workflow once:

1. List instances carrying the selector tag
2. Create an image of each, wait for it, and tag it with LEB-DeleteOn
3. Deregister images whose LEB-DeleteOn date has passed
4. Delete the snapshots of every deregistered image

The run report is printed when the run completes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkflow(cmd, (*backup.Runner).Run)
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up tagged instances without sweeping",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkflow(cmd, (*backup.Runner).Backup)
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired images and their snapshots",
	Long: `Deregister every image carrying the selector tag whose LEB-DeleteOn date
is today or earlier, then delete the snapshots created with it.

Use --dry-run to see what would be deleted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkflow(cmd, (*backup.Runner).Sweep)
	},
}

type workflowFunc func(r *backup.Runner, ctx context.Context) (*backup.Report, error)

// runWorkflow executes fn and prints its report. A run aborted by a failure
// policy is logged at critical severity and exits the process.
func runWorkflow(cmd *cobra.Command, fn workflowFunc) error {
	if err := output.ValidateFormat(outputFormat); err != nil {
		return err
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.log.Sync() }()

	report, runErr := fn(a.runner(), cmd.Context())

	if err := printReport(report); err != nil {
		return err
	}

	if backup.IsFatal(runErr) {
		a.log.Fatal("run aborted", zap.Error(runErr))
	}
	if runErr != nil {
		return fmt.Errorf("run finished with errors: %w", runErr)
	}
	return nil
}

func printReport(report *backup.Report) error {
	formatter, err := newFormatter()
	if err != nil {
		return err
	}

	result, err := formatter.FormatReport(report)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	fmt.Print(result)
	return nil
}
