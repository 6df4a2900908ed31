package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all stored trainings, responses, questions, contacts and settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetYes {
			return fmt.Errorf("refusing to reset without --yes")
		}
		st, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		if err := st.ResetAll(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "storage reset")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "confirm the reset")
	rootCmd.AddCommand(resetCmd)
}
