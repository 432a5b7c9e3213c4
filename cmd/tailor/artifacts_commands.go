package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

func newArtifactsCommand(cctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "List and download generated files",
	}
	cmd.AddCommand(
		newArtifactsListCommand(cctx),
		newArtifactsFetchCommand(cctx),
	)
	return cmd
}

func newArtifactsListCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List generated files and whether they are downloaded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := cctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			known := a.writer.Known()
			downloaded, err := a.writer.Downloaded()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(known) == 0 && len(downloaded) == 0 {
				fmt.Fprintln(out, "No artifacts yet.")
				return nil
			}

			rows := make([][]string, 0, len(known))
			seen := make(map[string]bool, len(known))
			for _, artifact := range known {
				seen[artifact.Filename] = true
				status := "remote"
				if slices.Contains(downloaded, artifact.Filename) {
					status = "downloaded"
				}
				rows = append(rows, []string{artifact.Filename, artifact.Kind, status})
			}
			// Files on disk from earlier sessions may no longer be announced.
			for _, name := range downloaded {
				if !seen[name] {
					rows = append(rows, []string{name, "", "downloaded"})
				}
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Filename", "Kind", "Status"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func newArtifactsFetchCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <filename>",
		Short: "Download a generated file into the artifact directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			local, err := a.writer.Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", local)
			return nil
		},
	}
}
