package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bookverse/platform/internal/tagging"
)

var enforceCmd = &cobra.Command{
	Use:   "enforce <app-key>",
	Short: "Enforce the latest-tag invariant for an application",
	Long: `Enforce the latest-tag invariant: the highest production-eligible,
non-quarantined version carries the "latest" tag and no other version does.

The operation is idempotent; re-running it after a partial failure converges
the tag state.

Example:
  platform enforce bookverse-inventory`,
	Args: cobra.ExactArgs(1),
	RunE: runEnforce,
}

func init() {
	rootCmd.AddCommand(enforceCmd)
}

func runEnforce(cmd *cobra.Command, args []string) error {
	appKey := args[0]

	svc, shutdown, err := taggingService(cmd)
	if err != nil {
		return err
	}
	defer shutdown()

	result, err := svc.EnforceLatest(cmd.Context(), appKey)
	if err != nil {
		return fmt.Errorf("enforcing latest tag for %s: %w", appKey, err)
	}

	switch result.Outcome {
	case tagging.EnforceNoVersions:
		fmt.Printf("No production versions found for %s; nothing to do\n", appKey)
	case tagging.EnforceNoCandidates:
		fmt.Printf("No eligible versions for %s (all quarantined or unparseable); nothing to do\n", appKey)
	case tagging.EnforceConverged:
		fmt.Printf("%s already converged: %s holds latest\n", appKey, result.Latest)
	case tagging.EnforceRetagged:
		fmt.Printf("Moved latest to %s@%s", appKey, result.Latest)
		if result.Previous != "" {
			fmt.Printf(" (was %s)", result.Previous)
		}
		fmt.Printf(", %d patches issued\n", result.PatchesIssued)
	}
	return nil
}
