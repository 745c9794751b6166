package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ledgerline/billrun/internal/cli"
	"github.com/ledgerline/billrun/internal/model"
)

func contactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "Manage billing contacts",
	}
	cmd.AddCommand(contactsAddCmd())
	cmd.AddCommand(contactsListCmd())
	cmd.AddCommand(contactsDeleteCmd())
	return cmd
}

func contactsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a contact",
		RunE:  runContactsAdd,
	}
	cmd.Flags().String("name", "", "contact name (required)")
	cmd.Flags().String("email", "", "contact email (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func runContactsAdd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	name, _ := cmd.Flags().GetString("name")
	emailAddr, _ := cmd.Flags().GetString("email")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	contact := &model.Contact{Name: name, Email: emailAddr}
	if err := store.CreateContact(ctx, contact); err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Added contact %d: %s <%s>", contact.ID, contact.Name, contact.Email)))
	return nil
}

func contactsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all contacts",
		RunE:  runContactsList,
	}
}

func runContactsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	contacts, err := store.ListContacts(ctx)
	if err != nil {
		return err
	}

	if len(contacts) == 0 {
		fmt.Println(cli.SubtleStyle.Render("No contacts yet"))
		return nil
	}

	fmt.Println(cli.FormatTitle("Contacts"))
	fmt.Println(cli.TableHeaderStyle.Render(fmt.Sprintf("%-5s %-25s %s", "ID", "NAME", "EMAIL")))
	for _, contact := range contacts {
		fmt.Printf("%-5d %-25s %s\n", contact.ID, contact.Name, contact.Email)
	}
	return nil
}

func contactsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a contact",
		Args:  cobra.ExactArgs(1),
		RunE:  runContactsDelete,
	}
}

func runContactsDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid contact id %q", args[0])
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.DeleteContact(ctx, id); err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deleted contact %d", id)))
	return nil
}
