package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tailor/internal/logging"
	"tailor/internal/requirements"
)

func newJobCommand(cctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Provide and extract the job requirements",
	}
	cmd.AddCommand(
		newJobSetCommand(cctx),
		newJobSubmitCommand(cctx),
		newJobSkipCommand(cctx),
		newJobClearCommand(cctx),
		newJobResearchCommand(cctx),
	)
	return cmd
}

func newJobSetCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <url or description...>",
		Short: "Set the job posting URL or pasted description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if _, _, err := a.sessions.Initialize(cmd.Context()); err != nil {
				return err
			}
			input := a.requirements.SetRawInput(strings.Join(args, " "))
			fmt.Fprintln(cmd.OutOrStdout(), describeInput(input))
			return saveWorkspace(cmd.Context(), a)
		},
	}
}

func describeInput(input requirements.Input) string {
	switch {
	case input.LooksLikeURL:
		return "Input accepted as a job posting URL."
	case input.LooksLikeText:
		return "Input accepted as a job description."
	default:
		return "Input is neither a URL nor a long enough description; extraction will be rejected until it is."
	}
}

func newJobSubmitCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "submit",
		Short: "Run requirement extraction over the stored input",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := cctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if _, _, err := a.sessions.Initialize(cmd.Context()); err != nil {
				return err
			}
			job, err := a.requirements.Submit(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.sessions.MarkRequirements(cmd.Context(), true); err != nil {
				a.logger.Warn("requirements not recorded on session", logging.Error(err))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Requirements extracted: %s (%s)\n", job.JobTitle, job.JobLevel)
			if len(job.RequiredSkills) > 0 {
				fmt.Fprintf(out, "Required skills: %s\n", strings.Join(job.RequiredSkills, ", "))
			}
			return saveWorkspace(cmd.Context(), a)
		},
	}
}

func newJobSkipCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "skip",
		Short: "Skip the requirements step entirely",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := cctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.pipeline.SkipRequirements(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Requirements step skipped. The CV is still required.")
			return saveWorkspace(cmd.Context(), a)
		},
	}
}

func newJobClearCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop the stored input and any extracted requirements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := cctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			a.requirements.Clear()
			current, err := a.sessions.Current(cmd.Context())
			if err != nil {
				return err
			}
			if current != nil {
				if err := a.sessions.MarkRequirements(cmd.Context(), false); err != nil {
					return err
				}
				if err := a.sessions.SetRequirementsSkipped(cmd.Context(), false); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Job requirements cleared.")
			return saveWorkspace(cmd.Context(), a)
		},
	}
}

func newJobResearchCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "research <company name...>",
		Short: "Research the company to enrich the cover letter",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if _, _, err := a.sessions.Initialize(cmd.Context()); err != nil {
				return err
			}
			company, err := a.requirements.Research(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Company profile: %s (%s)\n", company.CompanyName, company.Industry)
			if company.MissionStatement != "" {
				fmt.Fprintf(out, "Mission: %s\n", company.MissionStatement)
			}
			if len(company.CoreValues) > 0 {
				fmt.Fprintf(out, "Values: %s\n", strings.Join(company.CoreValues, ", "))
			}
			return saveWorkspace(cmd.Context(), a)
		},
	}
}
