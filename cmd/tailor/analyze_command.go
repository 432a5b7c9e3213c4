package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAnalyzeCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Run the pipeline: upload, extract, align, then unlock chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := cctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			plan, err := a.pipeline.StartAnalysis(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if plan == nil {
				fmt.Fprintln(out, "Pipeline complete (requirements skipped). Chat is ready.")
				return saveWorkspace(cmd.Context(), a)
			}
			fmt.Fprintln(out, "Alignment analysis complete. Chat is ready.")
			if len(plan.MatchingSkills) > 0 {
				fmt.Fprintf(out, "Matching skills: %s\n", strings.Join(plan.MatchingSkills, ", "))
			}
			if len(plan.KeywordsToIncorporate) > 0 {
				fmt.Fprintf(out, "Keywords to work in: %s\n", strings.Join(plan.KeywordsToIncorporate, ", "))
			}
			if plan.Reasoning != "" {
				fmt.Fprintf(out, "\n%s\n", plan.Reasoning)
			}
			return saveWorkspace(cmd.Context(), a)
		},
	}
}
