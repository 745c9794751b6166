package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ledgerline/billrun/internal/cli"
	"github.com/ledgerline/billrun/internal/payments"
)

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <statement.csv>",
		Short: "Mark bills paid from a bank statement export",
		Long: `Parse a semicolon-separated bank statement export and mark every sent or
overdue bill whose amount, currency, creditor IBAN, and structured
reference match a credited payment.`,
		Args: cobra.ExactArgs(1),
		RunE: runReconcile,
	}
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	statement, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open statement: %w", err)
	}
	defer func() { _ = statement.Close() }()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	result, err := payments.NewReconciler(store).Reconcile(ctx, statement)
	if err != nil {
		return err
	}

	fmt.Println(cli.RenderRunSummary(result.Message, result.Errors))
	return nil
}
