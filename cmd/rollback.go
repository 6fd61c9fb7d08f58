package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback <app-key> <version>",
	Short: "Quarantine a rolled-back version and promote a successor",
	Long: `Quarantine a version after a rollback event. The version's tag becomes
quarantine-<version> with the previous tag preserved in a backup property.
When the version held "latest", the next-highest eligible version is promoted
in its place.

Example:
  platform rollback bookverse-inventory 2.1.0`,
	Args: cobra.ExactArgs(2),
	RunE: runRollback,
}

func init() {
	rootCmd.AddCommand(rollbackCmd)
}

func runRollback(cmd *cobra.Command, args []string) error {
	appKey, version := args[0], args[1]

	svc, shutdown, err := taggingService(cmd)
	if err != nil {
		return err
	}
	defer shutdown()

	result, err := svc.HandleRollback(cmd.Context(), appKey, version)
	if err != nil {
		return fmt.Errorf("handling rollback of %s@%s: %w", appKey, version, err)
	}

	fmt.Printf("Quarantined %s@%s as %s\n", appKey, version, result.Quarantined)
	switch {
	case result.Promoted != "":
		fmt.Printf("Promoted %s to latest\n", result.Promoted)
	case result.NoSuccessor:
		fmt.Println("No eligible successor for latest; tag left unassigned")
	default:
		fmt.Println("Latest tag unchanged (rolled-back version did not hold it)")
	}
	return nil
}
