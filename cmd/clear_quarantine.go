package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearQuarantineCmd = &cobra.Command{
	Use:   "clear-quarantine <app-key> <version>",
	Short: "Lift the quarantine on a version",
	Long: `Restore a quarantined version's previous tag and remove its quarantine
backup property. The version does not reclaim "latest"; run enforce afterwards
if a promotion is wanted.

Example:
  platform clear-quarantine bookverse-inventory 2.1.0`,
	Args: cobra.ExactArgs(2),
	RunE: runClearQuarantine,
}

func init() {
	rootCmd.AddCommand(clearQuarantineCmd)
}

func runClearQuarantine(cmd *cobra.Command, args []string) error {
	appKey, version := args[0], args[1]

	svc, shutdown, err := taggingService(cmd)
	if err != nil {
		return err
	}
	defer shutdown()

	result, err := svc.ClearQuarantine(cmd.Context(), appKey, version)
	if err != nil {
		return fmt.Errorf("clearing quarantine on %s@%s: %w", appKey, version, err)
	}

	if !result.Cleared {
		fmt.Printf("%s@%s is not quarantined (tag: %s); nothing to do\n", appKey, version, result.RestoredTag)
		return nil
	}
	fmt.Printf("Cleared quarantine on %s@%s, restored tag %q\n", appKey, version, result.RestoredTag)
	return nil
}
