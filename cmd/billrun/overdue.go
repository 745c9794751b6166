package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ledgerline/billrun/internal/cli"
	"github.com/ledgerline/billrun/internal/engine"
)

func overdueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "Manage the overdue bill lifecycle",
	}
	cmd.AddCommand(overdueMarkCmd())
	cmd.AddCommand(overdueNotifyCmd())
	return cmd
}

func overdueMarkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mark",
		Short: "Mark all bills past their due date as overdue",
		Long: `Flip every sent or pending bill whose due date has passed to overdue.
The sweep is a single update and can be run as often as you like.`,
		RunE: runOverdueMark,
	}
	cmd.Flags().String("as-of", "", "treat this date (YYYY-MM-DD) as today")
	return cmd
}

func runOverdueMark(cmd *cobra.Command, _ []string) error {
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

	eng := engine.NewWithConfig(store, nil, nil, engine.Config{ProgressWriter: io.Discard})
	result, err := eng.MarkOverdueBills(ctx, now)
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(result.Message))
	return nil
}

func overdueNotifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify",
		Short: "Email a reminder for every overdue bill",
		Long: `Send the creditor a reminder for each overdue bill. Bill status is not
changed, so reminders can be repeated until payment arrives.`,
		RunE: runOverdueNotify,
	}
}

func runOverdueNotify(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	eng, err := initEngine(store)
	if err != nil {
		return err
	}

	result, err := eng.NotifyOverdueBills(ctx)
	if err != nil {
		return err
	}

	fmt.Println(cli.RenderRunSummary(result.Message, result.Errors))
	return nil
}
