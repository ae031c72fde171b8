package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tally/internal/core"
	"tally/internal/services"
)

var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Manage monthly budget limits",
}

var limitsShowCmd = &cobra.Command{
	Use:   "show [month]",
	Short: "Show limits, for one month or the whole document",
	Args:  cobra.MaximumNArgs(1),
	RunE: withServicesArgs(func(cmd *cobra.Command, args []string, svc *services.Services) error {
		if len(args) == 1 {
			month, err := svc.Limits.Month(flagProfile, args[0])
			if err != nil {
				return err
			}
			return printMonthLimits(cmd.OutOrStdout(), month)
		}
		table, err := svc.Limits.Load(flagProfile)
		if err != nil {
			return err
		}
		months := make([]string, 0, len(table))
		for mk := range table {
			months = append(months, mk)
		}
		sort.Strings(months)
		for _, mk := range months {
			cmd.Println(mk)
			if err := printMonthLimits(cmd.OutOrStdout(), table[mk]); err != nil {
				return err
			}
		}
		return nil
	}),
}

var limitsSetCmd = &cobra.Command{
	Use:   "set <month> <category=amount>...",
	Short: "Replace one month's limits",
	Args:  cobra.MinimumNArgs(2),
	RunE: withServicesArgs(func(cmd *cobra.Command, args []string, svc *services.Services) error {
		cats := make(core.CategoryLimits, len(args)-1)
		for _, pair := range args[1:] {
			name, value, ok := strings.Cut(pair, "=")
			if !ok {
				return fmt.Errorf("limit %q: want category=amount", pair)
			}
			amount, err := core.ParseAmount(value)
			if err != nil {
				return fmt.Errorf("limit %q: %w", pair, err)
			}
			cats[name] = amount
		}
		saved, err := svc.Limits.SaveMonth(cmd.Context(), flagProfile, args[0], cats)
		if err != nil {
			return err
		}
		cmd.Printf("Saved %d limits for %s\n", len(saved), args[0])
		return nil
	}),
}

var limitsClearCmd = &cobra.Command{
	Use:   "clear <month>",
	Short: "Remove one month's limits",
	Args:  cobra.ExactArgs(1),
	RunE: withServicesArgs(func(cmd *cobra.Command, args []string, svc *services.Services) error {
		removed, err := svc.Limits.ClearMonth(cmd.Context(), flagProfile, args[0])
		if err != nil {
			return err
		}
		cmd.Printf("Cleared %d limits for %s\n", len(removed), args[0])
		return nil
	}),
}

var limitsSuggestCmd = &cobra.Command{
	Use:   "suggest <month>",
	Short: "Suggest limits from trailing spend history",
	Args:  cobra.ExactArgs(1),
	RunE: withServicesArgs(func(cmd *cobra.Command, args []string, svc *services.Services) error {
		suggested, err := svc.Limits.Suggest(cmd.Context(), flagProfile, args[0])
		if err != nil {
			return err
		}
		return printMonthLimits(cmd.OutOrStdout(), suggested)
	}),
}

var limitsAutofillCmd = &cobra.Command{
	Use:   "autofill <month>",
	Short: "Fill an empty month from history and save it",
	Args:  cobra.ExactArgs(1),
	RunE: withServicesArgs(func(cmd *cobra.Command, args []string, svc *services.Services) error {
		filled, err := svc.Limits.AutoFill(cmd.Context(), flagProfile, args[0])
		if err != nil {
			return err
		}
		return printMonthLimits(cmd.OutOrStdout(), filled)
	}),
}

var (
	checkStart    string
	checkEnd      string
	checkCategory string
)

var limitsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Grade filtered spending against the limits",
	Args:  cobra.NoArgs,
	RunE: withServices(func(cmd *cobra.Command, svc *services.Services) error {
		f, err := filterFromFlags(checkStart, checkEnd, checkCategory)
		if err != nil {
			return err
		}
		warnings, err := svc.Limits.Check(cmd.Context(), flagProfile, f)
		if err != nil {
			return err
		}
		if len(warnings) == 0 {
			cmd.Println("No spending to check.")
			return nil
		}
		for _, w := range warnings {
			cmd.Println(w.String())
		}
		return nil
	}),
}

var limitsAdviseCmd = &cobra.Command{
	Use:   "advise <month>",
	Short: "Compare a month's limits against suggested values",
	Args:  cobra.ExactArgs(1),
	RunE: withServicesArgs(func(cmd *cobra.Command, args []string, svc *services.Services) error {
		advice, err := svc.Limits.Advise(cmd.Context(), flagProfile, args[0])
		if err != nil {
			return err
		}
		if len(advice) == 0 {
			cmd.Println("Limits look fine.")
			return nil
		}
		for _, a := range advice {
			cmd.Println(a.String())
		}
		return nil
	}),
}

var limitsExportCSVCmd = &cobra.Command{
	Use:   "export-csv <month>",
	Short: "Export one month's limits as CSV",
	Args:  cobra.ExactArgs(1),
	RunE: withServicesArgs(func(cmd *cobra.Command, args []string, svc *services.Services) error {
		data, err := svc.Limits.ExportCSV(flagProfile, args[0])
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}),
}

var limitsImportCSVCmd = &cobra.Command{
	Use:   "import-csv <month> <file>",
	Short: "Replace one month's limits from a CSV file (\"-\" for stdin)",
	Args:  cobra.ExactArgs(2),
	RunE: withServicesArgs(func(cmd *cobra.Command, args []string, svc *services.Services) error {
		data, err := readFileOrStdin(cmd, args[1])
		if err != nil {
			return err
		}
		imported, err := svc.Limits.ImportCSV(cmd.Context(), flagProfile, args[0], data)
		if err != nil {
			return err
		}
		cmd.Printf("Imported %d limits for %s\n", len(imported), args[0])
		return nil
	}),
}

var limitsImportJSONCmd = &cobra.Command{
	Use:   "import-json <file>",
	Short: "Replace the whole limits document from a JSON file (\"-\" for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: withServicesArgs(func(cmd *cobra.Command, args []string, svc *services.Services) error {
		data, err := readFileOrStdin(cmd, args[0])
		if err != nil {
			return err
		}
		imported, err := svc.Limits.ImportJSON(cmd.Context(), flagProfile, data)
		if err != nil {
			return err
		}
		cmd.Printf("Imported limits for %d months\n", len(imported))
		return nil
	}),
}

var limitsExportJSONCmd = &cobra.Command{
	Use:   "export-json",
	Short: "Export the whole limits document as JSON",
	Args:  cobra.NoArgs,
	RunE: withServices(func(cmd *cobra.Command, svc *services.Services) error {
		data, err := svc.Limits.ExportJSON(flagProfile)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}),
}

// printMonthLimits writes one month's limits sorted by category.
func printMonthLimits(out io.Writer, month core.CategoryLimits) error {
	if len(month) == 0 {
		_, err := fmt.Fprintln(out, "  (no limits set)")
		return err
	}
	cats := make([]string, 0, len(month))
	for c := range month {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, c := range cats {
		fmt.Fprintf(w, "  %s\t%.2f\n", c, month[c])
	}
	return w.Flush()
}

func readFileOrStdin(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func init() {
	limitsCheckCmd.Flags().StringVar(&checkStart, "start", "", "start date (YYYY-MM-DD, inclusive)")
	limitsCheckCmd.Flags().StringVar(&checkEnd, "end", "", "end date (YYYY-MM-DD, inclusive)")
	limitsCheckCmd.Flags().StringVar(&checkCategory, "category", "", "only this category")

	limitsCmd.AddCommand(
		limitsShowCmd, limitsSetCmd, limitsClearCmd,
		limitsSuggestCmd, limitsAutofillCmd,
		limitsCheckCmd, limitsAdviseCmd,
		limitsExportCSVCmd, limitsImportCSVCmd,
		limitsImportJSONCmd, limitsExportJSONCmd,
	)
	rootCmd.AddCommand(limitsCmd)
}
