package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const meterCells = 10

func newRecordCommand(cctx *commandContext) *cobra.Command {
	var send bool
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record from the microphone and transcribe into the chat input",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := cctx.ensureApp(ctx)
			if err != nil {
				return err
			}
			if send {
				if _, _, err := a.sessions.Initialize(ctx); err != nil {
					return err
				}
			}
			_ = a.monitor.Start(ctx)

			if err := a.recorder.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Recording... press Enter to stop.")

			pressed := make(chan struct{})
			go func() {
				reader := bufio.NewReader(cmd.InOrStdin())
				_, _ = reader.ReadString('\n')
				close(pressed)
			}()

			ticker := time.NewTicker(250 * time.Millisecond)
			defer ticker.Stop()
		wait:
			for {
				select {
				case <-ctx.Done():
					a.recorder.Abort()
					fmt.Fprintln(os.Stderr)
					return ctx.Err()
				case <-pressed:
					break wait
				case event, ok := <-a.monitor.Events():
					if ok {
						fmt.Fprintf(os.Stderr, "\rcapture device %s: %s\n", event.Action, event.Device)
					}
				case <-ticker.C:
					snap := a.recorder.Snapshot()
					fmt.Fprintf(os.Stderr, "\r%s %s", formatElapsed(snap.Elapsed), levelBar(snap.Level))
				}
			}
			fmt.Fprintln(os.Stderr)

			result, err := a.recorder.Stop(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if result.Text == "" {
				fmt.Fprintln(out, "Nothing was recognized.")
				return nil
			}
			fmt.Fprintf(out, "Transcript: %s\n", result.Text)

			if !send {
				return nil
			}
			reply, err := a.chat.Send(ctx, a.chat.Input.Take())
			if err != nil {
				return err
			}
			printReply(cmd, a, reply)
			return saveWorkspace(ctx, a)
		},
	}
	cmd.Flags().BoolVar(&send, "send", false, "send the transcript to the assistant immediately")
	return cmd
}

func formatElapsed(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func levelBar(level float64) string {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	filled := int(level*meterCells + 0.5)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(" ", meterCells-filled) + "]"
}
