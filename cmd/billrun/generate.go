package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ledgerline/billrun/internal/cli"
	"github.com/ledgerline/billrun/internal/engine"
)

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate bills for all due schedules",
		Long: `Create one bill for every active schedule whose next billing date has
arrived, and advance each schedule to its next date. A schedule that fails
is skipped and reported; the rest of the run continues.`,
		RunE: runGenerate,
	}
	cmd.Flags().String("as-of", "", "treat this date (YYYY-MM-DD) as today")
	return cmd
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	now, err := asOfTime(cmd)
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	// Generation needs no mail transport.
	eng := engine.NewWithConfig(store, nil, nil, engine.Config{ProgressWriter: io.Discard})
	result, err := eng.GenerateRecurringBills(ctx, now)
	if err != nil {
		return err
	}

	fmt.Println(cli.RenderRunSummary(result.Message, result.Errors))
	return nil
}
