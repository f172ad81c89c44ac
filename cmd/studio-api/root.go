package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "studio-api",
	Short: "Course authoring backend: rerun workers and store management",
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(rerunCmd)
}
