package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"raqam/internal/cli"
	"raqam/internal/core"
)

var (
	flagAdjustOwner    string
	flagAdjustCategory string
	flagAdjustDate     string
	flagAdjustAmount   string
)

var adjustCmd = &cobra.Command{
	Use:   "adjust",
	Short: "Apply a manual spend correction to every budget covering a date",
	Long: "Adds --amount to the spend of each budget of the owner's category whose window " +
		"covers --date. A negative amount reverses spend; spend never drops below zero.",
	Example: "  catchup adjust --owner user-1 --category groceries --date 2024-04-15 --amount -12.50",
	RunE:    runAdjust,
}

func init() {
	adjustCmd.Flags().StringVarP(&flagAdjustOwner, "owner", "o", "", "Budget owner")
	adjustCmd.Flags().StringVarP(&flagAdjustCategory, "category", "c", "", "Budget category")
	adjustCmd.Flags().StringVar(&flagAdjustDate, "date", "", "Date inside the budget window (YYYY-MM-DD)")
	adjustCmd.Flags().StringVar(&flagAdjustAmount, "amount", "", "Signed amount, e.g. 25.00 or -12,50")
	for _, name := range []string{"owner", "category", "date", "amount"} {
		_ = adjustCmd.MarkFlagRequired(name)
	}
	rootCmd.AddCommand(adjustCmd)
}

func runAdjust(cmd *cobra.Command, _ []string) error {
	date, err := time.Parse("2006-01-02", flagAdjustDate)
	if err != nil {
		return fmt.Errorf("invalid --date %q: %w", flagAdjustDate, err)
	}
	delta, err := core.ParseMoney(flagAdjustAmount)
	if err != nil {
		return fmt.Errorf("invalid --amount %q: %w", flagAdjustAmount, err)
	}

	return withEngine(func(ctx context.Context, engine *cli.Engine) error {
		if err := engine.Adjuster.Adjust(ctx, flagAdjustOwner, flagAdjustCategory, date, delta); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied %s to %s budgets covering %s\n",
			delta, flagAdjustCategory, date.Format("2006-01-02"))
		return nil
	})
}
