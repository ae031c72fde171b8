package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tally/internal/core"
	"tally/internal/services"
)

var addCmd = &cobra.Command{
	Use:   "add <date> <category> <amount> [description...]",
	Short: "Record an expense",
	Args:  cobra.MinimumNArgs(3),
	RunE: withServicesArgs(func(cmd *cobra.Command, args []string, svc *services.Services) error {
		date, err := core.ParseDate(args[0])
		if err != nil {
			return err
		}
		amount, err := core.ParseAmount(args[2])
		if err != nil {
			return err
		}
		e, err := svc.Ledger.AddExpense(cmd.Context(), flagProfile, core.Expense{
			Date:        date,
			Category:    args[1],
			Amount:      amount,
			Description: strings.Join(args[3:], " "),
		})
		if err != nil {
			return err
		}
		cmd.Printf("Added expense %d: %s %s %.2f\n", e.ID, e.Date, e.Category, e.Amount)
		return nil
	}),
}

var (
	listStart    string
	listEnd      string
	listCategory string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List expenses, newest first",
	Args:  cobra.NoArgs,
	RunE: withServices(func(cmd *cobra.Command, svc *services.Services) error {
		f, err := filterFromFlags(listStart, listEnd, listCategory)
		if err != nil {
			return err
		}
		out, err := svc.Ledger.Query(cmd.Context(), flagProfile, f)
		if err != nil {
			return err
		}
		if len(out) == 0 {
			cmd.Println("No expenses found.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDATE\tCATEGORY\tAMOUNT\tDESCRIPTION")
		for _, e := range out {
			fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%s\n", e.ID, e.Date, e.Category, e.Amount, e.Description)
		}
		return w.Flush()
	}),
}

var (
	exportStart    string
	exportEnd      string
	exportCategory string
	exportOutput   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export expenses as CSV",
	Args:  cobra.NoArgs,
	RunE: withServices(func(cmd *cobra.Command, svc *services.Services) error {
		f, err := filterFromFlags(exportStart, exportEnd, exportCategory)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if exportOutput != "" {
			file, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			defer file.Close()
			out = file
		}
		return svc.Ledger.ExportCSV(cmd.Context(), flagProfile, out, f)
	}),
}

var categoriesMonth string

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List known categories",
	Args:  cobra.NoArgs,
	RunE: withServices(func(cmd *cobra.Command, svc *services.Services) error {
		cats, err := svc.Ledger.Categories(cmd.Context(), flagProfile, categoriesMonth)
		if err != nil {
			return err
		}
		for _, c := range cats {
			cmd.Println(c)
		}
		return nil
	}),
}

var summaryCmd = &cobra.Command{
	Use:   "summary <month>",
	Short: "Show one month's spend by category",
	Args:  cobra.ExactArgs(1),
	RunE: withServicesArgs(func(cmd *cobra.Command, args []string, svc *services.Services) error {
		sum, err := svc.Ledger.MonthSummary(cmd.Context(), flagProfile, args[0])
		if err != nil {
			return err
		}
		cmd.Printf("%s total: %.2f\n", sum.Month, sum.Total)
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, ct := range sum.ByCategory {
			fmt.Fprintf(w, "%s\t%.2f\n", ct.Category, ct.Total)
		}
		return w.Flush()
	}),
}

var migrateLegacyCmd = &cobra.Command{
	Use:   "migrate-legacy <file.json>",
	Short: "Import expenses from the old JSON export format",
	Args:  cobra.ExactArgs(1),
	RunE: withServicesArgs(func(cmd *cobra.Command, args []string, svc *services.Services) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read legacy file: %w", err)
		}
		n, err := svc.Ledger.ImportLegacyJSON(cmd.Context(), flagProfile, data)
		if err != nil {
			return err
		}
		cmd.Printf("Imported %d expenses\n", n)
		return nil
	}),
}

// filterFromFlags builds a ledger filter from --start/--end/--category
// values. Empty strings mean open bounds.
func filterFromFlags(start, end, category string) (core.Filter, error) {
	var f core.Filter
	var err error
	if start != "" {
		if f.Start, err = core.ParseDate(start); err != nil {
			return core.Filter{}, err
		}
	}
	if end != "" {
		if f.End, err = core.ParseDate(end); err != nil {
			return core.Filter{}, err
		}
	}
	f.Category = category
	return f, nil
}

func init() {
	listCmd.Flags().StringVar(&listStart, "start", "", "start date (YYYY-MM-DD, inclusive)")
	listCmd.Flags().StringVar(&listEnd, "end", "", "end date (YYYY-MM-DD, inclusive)")
	listCmd.Flags().StringVar(&listCategory, "category", "", "only this category")

	exportCmd.Flags().StringVar(&exportStart, "start", "", "start date (YYYY-MM-DD, inclusive)")
	exportCmd.Flags().StringVar(&exportEnd, "end", "", "end date (YYYY-MM-DD, inclusive)")
	exportCmd.Flags().StringVar(&exportCategory, "category", "", "only this category")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write CSV to this file instead of stdout")

	categoriesCmd.Flags().StringVar(&categoriesMonth, "month", "", "fold in this month's limit categories (YYYY-MM)")

	rootCmd.AddCommand(addCmd, listCmd, exportCmd, categoriesCmd, summaryCmd, migrateLegacyCmd)
}
