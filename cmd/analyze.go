package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/company-analyzer/internal/analysis"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		noEnrichment bool
		forceRefresh bool
		output       string
	)

	cmd := &cobra.Command{
		Use:   "analyze <url>",
		Short: "Analyzes one company URL and prints the result",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, appInstance App) error {
			if output != "markdown" && output != "json" {
				return fmt.Errorf("unknown output format %q", output)
			}
			req, err := analysis.NewRequest(args[0], !noEnrichment, forceRefresh)
			if err != nil {
				return fmt.Errorf("invalid url %q: %w", args[0], err)
			}
			resp, err := appInstance.Analyze(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if output == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(resp); err != nil {
					return fmt.Errorf("encode response: %w", err)
				}
				return nil
			}
			if _, err := fmt.Fprintln(out, resp.MarkdownReport); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			return nil
		}),
	}

	cmd.Flags().BoolVar(&noEnrichment, "no-enrichment", false, "skip external enrichment providers")
	cmd.Flags().BoolVar(&forceRefresh, "force-refresh", false, "ignore any stored analysis of the URL")
	cmd.Flags().StringVarP(&output, "output", "o", "markdown", "output format: markdown or json")
	return cmd
}
