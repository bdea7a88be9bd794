package cmd

import (
	"fmt"

	"drivemigrate/internal/auth"

	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication for cloud accounts",
}

var authGDriveCmd = &cobra.Command{
	Use:   "gdrive [account-email]",
	Short: "Authenticate a Google Drive account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := auth.NewFileStore()
		if err != nil {
			return err
		}

		if err := creds.AuthorizeGDrive(args[0]); err != nil {
			return err
		}

		fmt.Printf("Authenticated %s with Google Drive\n", args[0])
		return nil
	},
}

var authDropboxCmd = &cobra.Command{
	Use:   "dropbox [account]",
	Short: "Authenticate a Dropbox account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := auth.NewFileStore()
		if err != nil {
			return err
		}

		if err := creds.AuthorizeDropbox(args[0]); err != nil {
			return err
		}

		fmt.Printf("Authenticated %s with Dropbox\n", args[0])
		return nil
	},
}

func init() {
	authCmd.AddCommand(authGDriveCmd, authDropboxCmd)
	rootCmd.AddCommand(authCmd)
}
