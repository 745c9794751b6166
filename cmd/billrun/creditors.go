package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ledgerline/billrun/internal/cli"
	"github.com/ledgerline/billrun/internal/model"
)

func creditorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "creditors",
		Short: "Manage creditors (payees)",
	}
	cmd.AddCommand(creditorsAddCmd())
	cmd.AddCommand(creditorsListCmd())
	cmd.AddCommand(creditorsDeleteCmd())
	return cmd
}

func creditorsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a creditor",
		Long: `Register a payee. The IBAN is validated and stored in canonical form;
incoming payments are reconciled against it.`,
		RunE: runCreditorsAdd,
	}
	cmd.Flags().String("name", "", "creditor name (required)")
	cmd.Flags().String("city", "", "city (required)")
	cmd.Flags().String("pcode", "", "postal code (required)")
	cmd.Flags().String("country", "CH", "ISO 3166-1 alpha-2 country code")
	cmd.Flags().String("email", "", "creditor email (required)")
	cmd.Flags().String("iban", "", "IBAN (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("city")
	_ = cmd.MarkFlagRequired("pcode")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("iban")
	return cmd
}

func runCreditorsAdd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	creditor := &model.Creditor{}
	creditor.Name, _ = cmd.Flags().GetString("name")
	creditor.City, _ = cmd.Flags().GetString("city")
	creditor.PostCode, _ = cmd.Flags().GetString("pcode")
	creditor.Country, _ = cmd.Flags().GetString("country")
	creditor.Email, _ = cmd.Flags().GetString("email")
	creditor.IBAN, _ = cmd.Flags().GetString("iban")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.CreateCreditor(ctx, creditor); err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Added creditor %d: %s (%s)", creditor.ID, creditor.Name, creditor.IBAN)))
	return nil
}

func creditorsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all creditors",
		RunE:  runCreditorsList,
	}
}

func runCreditorsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	creditors, err := store.ListCreditors(ctx)
	if err != nil {
		return err
	}

	if len(creditors) == 0 {
		fmt.Println(cli.SubtleStyle.Render("No creditors yet"))
		return nil
	}

	fmt.Println(cli.FormatTitle("Creditors"))
	fmt.Println(cli.TableHeaderStyle.Render(fmt.Sprintf("%-5s %-25s %-25s %s", "ID", "NAME", "IBAN", "EMAIL")))
	for _, creditor := range creditors {
		fmt.Printf("%-5d %-25s %-25s %s\n", creditor.ID, creditor.Name, creditor.IBAN, creditor.Email)
	}
	return nil
}

func creditorsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a creditor",
		Args:  cobra.ExactArgs(1),
		RunE:  runCreditorsDelete,
	}
}

func runCreditorsDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid creditor id %q", args[0])
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.DeleteCreditor(ctx, id); err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deleted creditor %d", id)))
	return nil
}
