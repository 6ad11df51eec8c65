// Package cmd implements the tellergate CLI using cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"
const logo = "🏦"

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "tellergate",
	Short: logo + " tellergate — Conversational Banking Gateway",
	Long:  logo + " tellergate — a tool-dispatch orchestration core for conversational banking",
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(statusCmd)
}
