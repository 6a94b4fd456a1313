// Package cmd implements the command-line interface for calchat.
//
// This package provides the following commands:
//   - serve: Start the conversational calendar HTTP server
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the calchat application
var rootCmd = &cobra.Command{
	Use:   "calchat",
	Short: "A conversational agent for Google Calendar",
	Long: `calchat is a chat service that manages a Google Calendar through
natural language. Messages are interpreted by an LLM which lists,
creates, updates and deletes events on the user's behalf.

It runs as an HTTP server exposing a single conversational endpoint
plus health and metrics surfaces.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "calchat version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
