// Mindmapd serves UPSC mind-map generation over HTTP and MCP.
//
// Usage:
//
//	# Start the HTTP API on :8001
//	mindmapd serve
//
//	# Serve the MCP tools over stdio
//	mindmapd mcp
//
//	# Configure via environment
//	MINDMAPD_SERVER_HTTP_PORT=9000 OPENAI_API_KEY=... mindmapd serve
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// configPath is the optional YAML config file.
var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mindmapd",
	Short: "UPSC mind-map generation service",
	Long: `mindmapd generates structured UPSC study mind maps with an LLM-driven
research, generate, reflect and improve workflow.

It serves the workflow and its companion features (saved generations, news,
tips and practice questions) over an HTTP API, and the workflow over MCP.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "mindmapd by Fyrsmith Labs\n")
		fmt.Fprintf(out, "Version:    %s\n", version)
		fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
		fmt.Fprintf(out, "Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/mindmapd/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}
