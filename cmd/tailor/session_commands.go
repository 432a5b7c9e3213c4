package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSessionCommand(cctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the tailoring session",
	}
	cmd.AddCommand(
		newSessionStartCommand(cctx),
		newSessionStateCommand(cctx),
		newSessionResetCommand(cctx),
	)
	return cmd
}

func newSessionStartCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start a session, or show the one already active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := cctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			current, welcome, err := a.sessions.Initialize(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if welcome != "" {
				fmt.Fprintln(out, welcome)
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "Session %s (%s)\n", current.ID, current.Stage.Title())
			return nil
		},
	}
}

func newSessionStateCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Re-sync against the backend and show the session state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := cctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			current, err := a.sessions.FetchRemoteState(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderKeyValues([][2]string{
				{"Session", current.ID},
				{"Stage", current.Stage.Title()},
				{"CV uploaded", yesNo(current.HasDocument)},
				{"Requirements", yesNo(current.HasRequirements)},
				{"Needs clarification", yesNo(current.NeedsClarification)},
				{"Ready for chat", yesNo(current.ReadyForChat)},
			}))
			return saveWorkspace(cmd.Context(), a)
		},
	}
}

func newSessionResetCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard the session and all collected inputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := cctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.sessions.Reset(cmd.Context()); err != nil {
				return err
			}
			a.uploads.Remove()
			a.requirements.Clear()
			a.pipeline.RestorePlan(nil)
			fmt.Fprintln(cmd.OutOrStdout(), "Session reset.")
			return nil
		},
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
