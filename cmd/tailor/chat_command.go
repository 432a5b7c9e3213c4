package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tailor/internal/chat"
)

func newChatCommand(cctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat <message...>",
		Short: "Send one message to the assistant",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if _, _, err := a.sessions.Initialize(cmd.Context()); err != nil {
				return err
			}
			a.chat.Input.Append(strings.Join(args, " "))
			reply, err := a.chat.Send(cmd.Context(), a.chat.Input.Take())
			if err != nil {
				return err
			}
			printReply(cmd, a, reply)
			return saveWorkspace(cmd.Context(), a)
		},
	}
	cmd.AddCommand(newChatHistoryCommand(cctx))
	return cmd
}

func printReply(cmd *cobra.Command, a *app, reply *chat.Message) {
	out := cmd.OutOrStdout()
	if reply.Synthetic {
		fmt.Fprintf(out, "(connection problem) %s\n", reply.Content)
		return
	}
	fmt.Fprintln(out, reply.Content)
	for _, attachment := range reply.Attachments {
		fmt.Fprintf(out, "  [file] %s — fetch it with \"tailor artifacts fetch %s\"\n",
			attachment.Filename, attachment.Filename)
	}
	if hint := a.chat.NextAction(); hint != "" {
		fmt.Fprintf(out, "(next: %s)\n", hint)
	}
}

func newChatHistoryCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show the stored conversation, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := cctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			messages, err := a.chat.History(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(messages) == 0 {
				fmt.Fprintln(out, "No conversation yet.")
				return nil
			}
			for _, msg := range messages {
				fmt.Fprintf(out, "%s %s: %s\n",
					msg.CreatedAt.Local().Format("15:04"), msg.Role, msg.Content)
				for _, attachment := range msg.Attachments {
					fmt.Fprintf(out, "    [file] %s\n", attachment.Filename)
				}
			}
			return nil
		},
	}
}
