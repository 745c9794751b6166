package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ledgerline/billrun/internal/cli"
	"github.com/ledgerline/billrun/internal/model"
	"github.com/ledgerline/billrun/internal/recur"
)

func schedulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedules",
		Short: "Manage recurring bill schedules",
	}
	cmd.AddCommand(schedulesAddCmd())
	cmd.AddCommand(schedulesListCmd())
	cmd.AddCommand(schedulesActivateCmd())
	cmd.AddCommand(schedulesDeactivateCmd())
	cmd.AddCommand(schedulesDeleteCmd())
	cmd.AddCommand(schedulesFrequenciesCmd())
	return cmd
}

func schedulesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a recurring bill schedule",
		Long: `Create a schedule that generates a bill on every recurrence of its
frequency. The description template may reference {{.Amount}},
{{.Currency}}, and {{.BillingDate}} fields such as {{.BillingDate.Year}},
{{.BillingDate.Quarter}}, or {{.BillingDate.ISO}}.`,
		Example: `  billrun schedules add --contact 1 --creditor 1 --amount 20.40 \
    --frequency QuarterEnd --template "YouTube Premium {{.BillingDate.Year}}Q{{.BillingDate.Quarter}}" \
    --start 2025-03-31`,
		RunE: runSchedulesAdd,
	}
	cmd.Flags().Int64("contact", 0, "contact id (required)")
	cmd.Flags().Int64("creditor", 0, "creditor id (required)")
	cmd.Flags().String("amount", "", "bill amount, e.g. 20.40 (required)")
	cmd.Flags().String("currency", "CHF", "bill currency")
	cmd.Flags().String("language", "en", "bill language")
	cmd.Flags().String("frequency", "", "recurrence rule, see 'schedules frequencies' (required)")
	cmd.Flags().String("frequency-params", "", `recurrence parameters as JSON, e.g. '{"n": 2}'`)
	cmd.Flags().String("template", "", "bill description template (required)")
	cmd.Flags().String("start", "", "first billing date, YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("contact")
	_ = cmd.MarkFlagRequired("creditor")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("frequency")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func runSchedulesAdd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	amountStr, _ := cmd.Flags().GetString("amount")
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", amountStr, err)
	}

	startStr, _ := cmd.Flags().GetString("start")
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return fmt.Errorf("invalid start date %q: %w", startStr, err)
	}

	var params map[string]any
	if paramsJSON, _ := cmd.Flags().GetString("frequency-params"); paramsJSON != "" {
		if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
			return fmt.Errorf("invalid frequency params: %w", err)
		}
	}

	schedule := &model.Schedule{
		Amount:          amount,
		StartDate:       start,
		NextBillingDate: start,
		FrequencyParams: params,
		IsActive:        true,
	}
	schedule.ContactID, _ = cmd.Flags().GetInt64("contact")
	schedule.CreditorID, _ = cmd.Flags().GetInt64("creditor")
	schedule.Currency, _ = cmd.Flags().GetString("currency")
	schedule.Language, _ = cmd.Flags().GetString("language")
	schedule.Frequency, _ = cmd.Flags().GetString("frequency")
	schedule.DescriptionTemplate, _ = cmd.Flags().GetString("template")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.CreateSchedule(ctx, schedule); err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Added schedule %d, first bill on %s",
		schedule.ID, schedule.NextBillingDate.Format("2006-01-02"))))
	return nil
}

func schedulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all schedules",
		RunE:  runSchedulesList,
	}
}

func runSchedulesList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	schedules, err := store.ListSchedules(ctx)
	if err != nil {
		return err
	}

	if len(schedules) == 0 {
		fmt.Println(cli.SubtleStyle.Render("No schedules yet"))
		return nil
	}

	fmt.Println(cli.FormatTitle("Schedules"))
	fmt.Println(cli.TableHeaderStyle.Render(
		fmt.Sprintf("%-5s %-10s %-18s %-12s %-8s %s", "ID", "AMOUNT", "FREQUENCY", "NEXT BILL", "ACTIVE", "TEMPLATE")))
	for _, schedule := range schedules {
		active := "yes"
		if !schedule.IsActive {
			active = "no"
		}
		fmt.Printf("%-5d %-10s %-18s %-12s %-8s %s\n",
			schedule.ID,
			schedule.Currency+" "+schedule.Amount.StringFixed(2),
			schedule.Frequency,
			schedule.NextBillingDate.Format("2006-01-02"),
			active,
			schedule.DescriptionTemplate)
	}
	return nil
}

func schedulesActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <id>",
		Short: "Resume bill generation for a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setScheduleActive(cmd, args[0], true)
		},
	}
}

func schedulesDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Pause bill generation for a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setScheduleActive(cmd, args[0], false)
		},
	}
}

func setScheduleActive(cmd *cobra.Command, arg string, active bool) error {
	ctx := cmd.Context()
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid schedule id %q", arg)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.SetScheduleActive(ctx, id, active); err != nil {
		return err
	}

	state := "activated"
	if !active {
		state = "deactivated"
	}
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Schedule %d %s", id, state)))
	return nil
}

func schedulesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a schedule (its bills survive)",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchedulesDelete,
	}
}

func runSchedulesDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid schedule id %q", args[0])
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.DeleteSchedule(ctx, id); err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deleted schedule %d", id)))
	return nil
}

func schedulesFrequenciesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "frequencies",
		Short: "List supported recurrence rules",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(cli.FormatTitle("Recurrence rules"))
			fmt.Println(strings.Join(recur.Kinds(), "\n"))
		},
	}
}
