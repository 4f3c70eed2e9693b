package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"raqam/internal/cli"
	"raqam/internal/services"
)

var flagRunOwner string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Catch up every due obligation of one owner",
	RunE:  runCatchUp,
}

func init() {
	runCmd.Flags().StringVarP(&flagRunOwner, "owner", "o", "", "Owner whose obligations are processed")
	_ = runCmd.MarkFlagRequired("owner")
	rootCmd.AddCommand(runCmd)
}

func runCatchUp(cmd *cobra.Command, _ []string) error {
	return withEngine(func(ctx context.Context, engine *cli.Engine) error {
		result, err := engine.Processor.ProcessDue(ctx, flagRunOwner)
		if err != nil {
			return fmt.Errorf("catch-up for %s: %w", flagRunOwner, err)
		}
		printRunResult(cmd.OutOrStdout(), result)
		if len(result.Errors) > 0 {
			return errors.New("some obligations failed; rerun to retry them")
		}
		return nil
	})
}

func printRunResult(w io.Writer, result services.RunResult) {
	fmt.Fprintf(w, "owner %s at %s\n", result.OwnerID, result.RunAt.Format("2006-01-02 15:04:05Z07:00"))
	fmt.Fprintf(w, "  transactions created: %d\n", len(result.CreatedTransactionIDs))
	for _, id := range result.CreatedTransactionIDs {
		fmt.Fprintf(w, "    %s\n", id)
	}
	fmt.Fprintf(w, "  obligations updated:  %d\n", len(result.UpdatedObligationIDs))
	for _, id := range result.UpdatedObligationIDs {
		fmt.Fprintf(w, "    %s\n", id)
	}
	if len(result.Errors) > 0 {
		fmt.Fprintf(w, "  errors: %d\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(w, "    %s [%s] %v\n", e.ObligationID, e.Kind, e.Err)
		}
	}
}
