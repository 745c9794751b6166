package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerline/billrun/internal/cli"
	"github.com/ledgerline/billrun/internal/engine"
	"github.com/ledgerline/billrun/internal/qr"
	"github.com/ledgerline/billrun/internal/service"
)

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send",
		Short: "Email all pending bills",
		Long: `Render the QR payment part for every pending bill, email it to the
contact with the creditor in copy, and mark the bill as sent.`,
		RunE: runSend,
	}
}

func runSend(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	sender, err := initSender()
	if err != nil {
		return err
	}
	eng := engine.NewWithConfig(store, sender, qr.NewRenderer(), engine.Config{
		ProgressWriter: os.Stdout,
	})

	result, err := eng.SendPendingBills(ctx, time.Now().UTC())
	if err != nil {
		return err
	}

	fmt.Println(cli.RenderRunSummary(result.Message, result.Errors))
	if result.Status == service.StatusPartialSuccess {
		return fmt.Errorf("%d bills failed to send", len(result.Errors))
	}
	return nil
}
