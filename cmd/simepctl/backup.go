package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adityarw/simep/internal/services"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Export or import a full storage backup",
}

var backupExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write a versioned backup document (default: stdout)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		doc, err := services.NewBackup(st).Export()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			_, err = cmd.OutOrStdout().Write(doc)
			return err
		}
		if err := os.WriteFile(args[0], doc, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "backup written to %s\n", args[0])
		return nil
	},
}

var backupImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace all stored data with the given backup document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		st, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		if err := services.NewBackup(st).Import(data); err != nil {
			return fmt.Errorf("import rejected: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "backup restored")
		return nil
	},
}

func init() {
	backupCmd.AddCommand(backupExportCmd, backupImportCmd)
	rootCmd.AddCommand(backupCmd)
}
