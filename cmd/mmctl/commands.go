package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	generateStage     string
	generatePaperType string
	generateTimeout   time.Duration
	generationsUser   string
)

// generateCmd runs the mind-map workflow
var generateCmd = &cobra.Command{
	Use:   "generate <topic>",
	Short: "Generate a mind map for a topic",
	Long: `Generate a UPSC mind map for a topic.

Examples:
  # Generate a mind map
  mmctl generate "Indian Federalism"

  # Tailor prompts to an advanced aspirant and print YAML
  mmctl generate "Monetary Policy" --stage advanced -o yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := map[string]any{
			"topic":             strings.Join(args, " "),
			"preparation_stage": generateStage,
		}
		if generatePaperType != "" {
			req["paper_type"] = generatePaperType
		}
		var out map[string]any
		if err := newClient(serverURL, generateTimeout).do(cmd.Context(), http.MethodPost, "/api/upsc-mindmap", req, &out); err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), output, out)
	},
}

// topicsCmd lists suggested topics
var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List suggested topics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var out map[string]any
		if err := newClient(serverURL, 10*time.Second).do(cmd.Context(), http.MethodGet, "/api/upsc-suggested-topics", nil, &out); err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), output, out["suggested_topics"])
	},
}

// generationsCmd is the parent command for saved generations
var generationsCmd = &cobra.Command{
	Use:   "generations",
	Short: "Manage saved generations",
	Long: `List, show and delete saved generations.

Examples:
  mmctl generations list --user alice
  mmctl generations get 3f1c... --user alice
  mmctl generations delete 3f1c... --user alice`,
}

var generationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved generations, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var out map[string]any
		path := "/api/saved-generations" + userQuery()
		if err := newClient(serverURL, 10*time.Second).do(cmd.Context(), http.MethodGet, path, nil, &out); err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), output, out["generations"])
	},
}

var generationsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one saved generation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]any
		path := "/api/saved-generations/" + url.PathEscape(args[0]) + userQuery()
		if err := newClient(serverURL, 10*time.Second).do(cmd.Context(), http.MethodGet, path, nil, &out); err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), output, out)
	},
}

var generationsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one saved generation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/api/saved-generations/" + url.PathEscape(args[0]) + userQuery()
		if err := newClient(serverURL, 10*time.Second).do(cmd.Context(), http.MethodDelete, path, nil, nil); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check mindmapd server health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var out struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}
		if err := newClient(serverURL, 5*time.Second).do(cmd.Context(), http.MethodGet, "/health", nil, &out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Server Status: %s\n", out.Status)
		fmt.Fprintf(cmd.OutOrStdout(), "Server URL: %s\n", serverURL)
		return nil
	},
}

func userQuery() string {
	if generationsUser == "" {
		return ""
	}
	return "?user_id=" + url.QueryEscape(generationsUser)
}

func init() {
	generateCmd.Flags().StringVar(&generateStage, "stage", "beginner", "preparation stage (beginner, intermediate, advanced)")
	generateCmd.Flags().StringVar(&generatePaperType, "paper-type", "", "paper type, recorded with the request")
	generateCmd.Flags().DurationVar(&generateTimeout, "timeout", 5*time.Minute, "request timeout")

	generationsCmd.PersistentFlags().StringVar(&generationsUser, "user", "", "user id (default anonymous)")
	generationsCmd.AddCommand(generationsListCmd)
	generationsCmd.AddCommand(generationsGetCmd)
	generationsCmd.AddCommand(generationsDeleteCmd)
}
