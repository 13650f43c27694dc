// Package cmd implements the tickflowctl subcommand tree.
package cmd

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "tickflowctl",
	Short: "Operate and exercise a tickflow deployment",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
