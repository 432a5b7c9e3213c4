package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tailor/internal/gateway"
)

func newGenerateCommand(cctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate tailored documents with the writer agent",
	}
	cmd.AddCommand(
		newGenerateCVCommand(cctx),
		newGenerateCoverLetterCommand(cctx),
	)
	return cmd
}

func newGenerateCVCommand(cctx *commandContext) *cobra.Command {
	var output string
	var fetch bool
	cmd := &cobra.Command{
		Use:   "cv",
		Short: "Generate the tailored CV PDF",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := cctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			document := a.uploads.Document()
			if !document.Accepted() {
				return fmt.Errorf("%w: upload a CV first", gateway.ErrValidation)
			}
			plan := a.pipeline.Plan()
			if plan == nil {
				return fmt.Errorf("%w: run \"tailor analyze\" first", gateway.ErrValidation)
			}

			artifact, err := a.writer.GenerateCV(cmd.Context(), document.CVData, plan, output)
			if err != nil {
				return err
			}
			return finishGeneration(cmd, a, artifact.Filename, fetch)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "tailored_cv.pdf", "output filename (.pdf)")
	cmd.Flags().BoolVar(&fetch, "fetch", false, "download the file once generated")
	return cmd
}

func newGenerateCoverLetterCommand(cctx *commandContext) *cobra.Command {
	var output string
	var recipient string
	var fetch bool
	cmd := &cobra.Command{
		Use:     "cover-letter",
		Aliases: []string{"letter"},
		Short:   "Generate the cover letter PDF",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := cctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			document := a.uploads.Document()
			if !document.Accepted() {
				return fmt.Errorf("%w: upload a CV first", gateway.ErrValidation)
			}
			job := a.requirements.Job()
			if job == nil {
				return fmt.Errorf("%w: extract job requirements first", gateway.ErrValidation)
			}

			// Company data is optional enrichment from "tailor job research".
			artifact, err := a.writer.GenerateCoverLetter(cmd.Context(),
				document.CVData, job, a.requirements.Company(), output, recipient)
			if err != nil {
				return err
			}
			return finishGeneration(cmd, a, artifact.Filename, fetch)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "cover_letter.pdf", "output filename (.pdf)")
	cmd.Flags().StringVar(&recipient, "recipient", "", "addressee (defaults to Hiring Manager)")
	cmd.Flags().BoolVar(&fetch, "fetch", false, "download the file once generated")
	return cmd
}

func finishGeneration(cmd *cobra.Command, a *app, filename string, fetch bool) error {
	out := cmd.OutOrStdout()
	if fetch {
		local, err := a.writer.Fetch(cmd.Context(), filename)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Generated and saved to %s\n", local)
	} else {
		fmt.Fprintf(out, "Generated %s — fetch it with \"tailor artifacts fetch %s\"\n", filename, filename)
	}
	return saveWorkspace(cmd.Context(), a)
}
