package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"raqam/internal/cli"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Catch up every owner that has due obligations",
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	return withEngine(func(ctx context.Context, engine *cli.Engine) error {
		summary, err := engine.Sweeper.Sweep(ctx)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "owners processed:     %d\n", summary.Owners)
		fmt.Fprintf(w, "transactions created: %d\n", summary.TransactionsCreated)
		fmt.Fprintf(w, "obligations updated:  %d\n", summary.ObligationsUpdated)
		fmt.Fprintf(w, "obligation errors:    %d\n", summary.ObligationErrors)

		if len(summary.FailedOwners) == 0 {
			return nil
		}
		owners := make([]string, 0, len(summary.FailedOwners))
		for owner := range summary.FailedOwners {
			owners = append(owners, owner)
		}
		sort.Strings(owners)
		for _, owner := range owners {
			fmt.Fprintf(w, "failed owner %s: %v\n", owner, summary.FailedOwners[owner])
		}
		return fmt.Errorf("%d owners failed", len(owners))
	})
}
