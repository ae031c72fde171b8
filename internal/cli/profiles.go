package cli

import (
	"github.com/spf13/cobra"

	"tally/internal/services"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage ledger profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	Args:  cobra.NoArgs,
	RunE: withServices(func(cmd *cobra.Command, svc *services.Services) error {
		handles, err := svc.Profiles.List()
		if err != nil {
			return err
		}
		for _, h := range handles {
			cmd.Println(h)
		}
		return nil
	}),
}

var profilesCreateCmd = &cobra.Command{
	Use:   "create <handle>",
	Short: "Create a profile",
	Args:  cobra.ExactArgs(1),
	RunE: withServicesArgs(func(cmd *cobra.Command, args []string, svc *services.Services) error {
		h, err := svc.Profiles.Create(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		cmd.Printf("Created profile %s\n", h)
		return nil
	}),
}

var profilesRenameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a profile and move its data files",
	Args:  cobra.ExactArgs(2),
	RunE: withServicesArgs(func(cmd *cobra.Command, args []string, svc *services.Services) error {
		if err := svc.Profiles.Rename(args[0], args[1]); err != nil {
			return err
		}
		cmd.Printf("Renamed profile %s to %s\n", args[0], args[1])
		return nil
	}),
}

var profilesArchiveCmd = &cobra.Command{
	Use:   "archive <handle>",
	Short: "Move a profile's data into the archive directory",
	Args:  cobra.ExactArgs(1),
	RunE: withServicesArgs(func(cmd *cobra.Command, args []string, svc *services.Services) error {
		dest, err := svc.Profiles.Archive(args[0])
		if err != nil {
			return err
		}
		cmd.Printf("Archived profile %s to %s\n", args[0], dest)
		return nil
	}),
}

var profilesDeleteArchive bool

var profilesDeleteCmd = &cobra.Command{
	Use:   "delete <handle>",
	Short: "Delete a profile and its data",
	Args:  cobra.ExactArgs(1),
	RunE: withServicesArgs(func(cmd *cobra.Command, args []string, svc *services.Services) error {
		if err := svc.Profiles.Delete(args[0], profilesDeleteArchive); err != nil {
			return err
		}
		cmd.Printf("Deleted profile %s\n", args[0])
		return nil
	}),
}

func init() {
	profilesDeleteCmd.Flags().BoolVar(&profilesDeleteArchive, "archive", false, "archive the data before deleting")
	profilesCmd.AddCommand(profilesListCmd, profilesCreateCmd, profilesRenameCmd, profilesArchiveCmd, profilesDeleteCmd)
	rootCmd.AddCommand(profilesCmd)
}
