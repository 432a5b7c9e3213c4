package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tailor/internal/audio"
)

func newTranscribeCommand(cctx *commandContext) *cobra.Command {
	var translate bool
	var language string
	var prompt string
	var send bool
	cmd := &cobra.Command{
		Use:   "transcribe <clip>",
		Short: "Transcribe (or translate) an existing audio clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := cctx.ensureApp(ctx)
			if err != nil {
				return err
			}
			if err := audio.ValidateClip(args[0]); err != nil {
				return err
			}
			result, err := a.transcriber.Transcribe(ctx, args[0], audio.TranscribeOptions{
				Translate: translate,
				Language:  language,
				Prompt:    prompt,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.Text == "" {
				fmt.Fprintln(out, "Nothing was recognized.")
				return nil
			}
			fmt.Fprintln(out, result.Text)

			if !send {
				return nil
			}
			if _, _, err := a.sessions.Initialize(ctx); err != nil {
				return err
			}
			a.chat.Input.Append(result.Text)
			reply, err := a.chat.Send(ctx, a.chat.Input.Take())
			if err != nil {
				return err
			}
			printReply(cmd, a, reply)
			return saveWorkspace(ctx, a)
		},
	}
	cmd.Flags().BoolVar(&translate, "translate", false, "translate to English instead of transcribing")
	cmd.Flags().StringVar(&language, "language", "", "spoken language hint (transcription only)")
	cmd.Flags().StringVar(&prompt, "prompt", "", "context prompt for the recognizer")
	cmd.Flags().BoolVar(&send, "send", false, "send the transcript to the assistant")
	return cmd
}
