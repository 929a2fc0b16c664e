package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionStatusCmd)
	sessionCmd.AddCommand(sessionClearCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and clear the authentication session",
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether an authentication session is still valid",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(nil)
		if err != nil {
			return err
		}
		defer a.close()

		valid, err := a.sessions.Valid()
		if err != nil {
			return err
		}
		if valid {
			fmt.Println("session: valid")
		} else {
			fmt.Println("session: none")
		}
		return nil
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Reset both session tiers (logout / wallet wipe)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(nil)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.sessions.Clear(); err != nil {
			return err
		}
		fmt.Println("session cleared")
		return nil
	},
}
