package cli

import (
	"os"

	"github.com/spf13/cobra"

	"tally/internal/audit"
	"tally/internal/services"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the limits audit trail",
}

var (
	auditFormat  string
	auditVariant string
	auditOutput  string
)

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the audit trail",
	Args:  cobra.NoArgs,
	RunE: withServices(func(cmd *cobra.Command, svc *services.Services) error {
		// A fresh process has an empty in-memory log; pull in what
		// earlier invocations persisted.
		if err := svc.Audit().LoadSink(); err != nil {
			return err
		}
		data, err := svc.Audit().Export(auditFormat, auditVariant)
		if err != nil {
			return err
		}
		if auditOutput != "" {
			return os.WriteFile(auditOutput, data, 0o644)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}),
}

var auditClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the audit trail",
	Args:  cobra.NoArgs,
	RunE: withServices(func(cmd *cobra.Command, svc *services.Services) error {
		if err := svc.Audit().ClearSink(); err != nil {
			return err
		}
		cmd.Println("Audit trail cleared")
		return nil
	}),
}

func init() {
	auditExportCmd.Flags().StringVar(&auditFormat, "format", audit.FormatJSON, "export format: json or csv")
	auditExportCmd.Flags().StringVar(&auditVariant, "variant", audit.VariantGeneric, "export variant: generic or diff")
	auditExportCmd.Flags().StringVarP(&auditOutput, "output", "o", "", "write to this file instead of stdout")
	auditCmd.AddCommand(auditExportCmd, auditClearCmd)
	rootCmd.AddCommand(auditCmd)
}
