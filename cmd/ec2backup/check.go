package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify AWS credentials and show the effective settings",
	Long: `Resolve credentials through the SDK default chain, call
sts:GetCallerIdentity and print the account, caller and settings that a run
would use. Nothing is created or deleted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}

		id, err := a.client.Whoami(cmd.Context())
		if err != nil {
			return fmt.Errorf("credential check failed: %w", err)
		}

		fmt.Printf("✓ Account: %s\n", id.Account)
		fmt.Printf("✓ Caller: %s\n", id.ARN)
		fmt.Printf("✓ Region: %s\n", id.Region)
		fmt.Printf("Settings: %s\n", a.cfg)
		return nil
	},
}
