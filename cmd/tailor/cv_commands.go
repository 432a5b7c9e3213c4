package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCVCommand(cctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cv",
		Short: "Select and upload the CV document",
	}
	cmd.AddCommand(
		newCVSelectCommand(cctx),
		newCVUploadCommand(cctx),
		newCVRemoveCommand(cctx),
	)
	return cmd
}

func newCVSelectCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "select <file.pdf>",
		Short: "Validate and select a CV file without uploading it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if _, _, err := a.sessions.Initialize(cmd.Context()); err != nil {
				return err
			}
			document, err := a.uploads.SelectFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Selected %s (%d KiB). Run \"tailor cv upload\" to submit it.\n",
				document.Path, document.Size>>10)
			return saveWorkspace(cmd.Context(), a)
		},
	}
}

func newCVUploadCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upload",
		Short: "Upload the selected CV for parsing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := cctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if _, _, err := a.sessions.Initialize(cmd.Context()); err != nil {
				return err
			}
			document, err := a.uploads.Submit(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.sessions.MarkDocument(cmd.Context(), document.NeedsClarification); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "CV parsed: %s <%s>\n", document.CVData.Name, document.CVData.Email)
			if document.NeedsClarification {
				fmt.Fprintln(out, "The assistant has some questions about your CV:")
				for _, question := range document.Questions {
					fmt.Fprintf(out, "  - %s\n", question)
				}
				fmt.Fprintln(out, "Answer them in chat; they do not block the pipeline.")
			}
			return saveWorkspace(cmd.Context(), a)
		},
	}
}

func newCVRemoveCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove",
		Short: "Drop the selected CV and its parsed data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := cctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			a.uploads.Remove()
			if err := a.sessions.ClearDocument(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "CV removed.")
			return saveWorkspace(cmd.Context(), a)
		},
	}
}
