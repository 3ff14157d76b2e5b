// Package main implements mmctl, a CLI for the mindmapd HTTP API.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the mindmapd HTTP server
	serverURL string
	// output selects json or yaml rendering
	output string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mmctl",
	Short: "CLI for the mindmapd HTTP API",
	Long: `mmctl is a command-line interface for the mindmapd HTTP API.
It generates mind maps, lists suggested topics and manages saved generations.`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return validateOutput(output)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8001", "mindmapd server URL")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "json", "output format (json or yaml)")
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(topicsCmd)
	rootCmd.AddCommand(generationsCmd)
	rootCmd.AddCommand(healthCmd)
}
