package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tailor/internal/bus"
	"tailor/internal/gateway"
)

func newRunCommand(cctx *commandContext) *cobra.Command {
	var skipRequirements bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Interactive session: drive the pipeline and chat in one place",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := cctx.ensureApp(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			current, welcome, err := a.sessions.Initialize(ctx)
			if err != nil {
				return err
			}
			if welcome != "" {
				fmt.Fprintln(out, welcome)
			}
			fmt.Fprintf(out, "Session %s (%s). Type /help for commands.\n", current.ID, current.Stage.Title())
			if skipRequirements {
				if err := a.pipeline.SkipRequirements(ctx); err != nil {
					return err
				}
				fmt.Fprintln(out, "Requirements step skipped.")
			}

			_ = a.monitor.Start(ctx)
			go watchStageChanges(ctx, a, out)
			go watchDeviceEvents(a, out)

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				if pending := a.chat.Input.Peek(); pending != "" {
					fmt.Fprintf(out, "[voice] %s\n", pending)
				}
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					break
				}
				if ctx.Err() != nil {
					break
				}
				line := strings.TrimSpace(scanner.Text())

				if strings.HasPrefix(line, "/") {
					quit := runSlashCommand(ctx, cmd, a, scanner, line)
					if quit {
						break
					}
					continue
				}

				if line == "" && a.chat.Input.Peek() == "" {
					continue
				}
				if line != "" {
					a.chat.Input.Append(line)
				}
				reply, err := a.chat.Send(ctx, a.chat.Input.Take())
				if err != nil {
					fmt.Fprintln(out, gateway.Describe(err))
					continue
				}
				printReply(cmd, a, reply)
				if err := saveWorkspace(ctx, a); err != nil {
					return err
				}
			}
			if err := scanner.Err(); err != nil && ctx.Err() == nil {
				return err
			}
			return saveWorkspace(ctx, a)
		},
	}
	cmd.Flags().BoolVar(&skipRequirements, "skip-requirements", false, "skip the requirements step up front")
	return cmd
}

// runSlashCommand handles one /command line. Errors are printed, never
// returned; the loop must survive a failed step.
func runSlashCommand(ctx context.Context, cmd *cobra.Command, a *app, scanner *bufio.Scanner, line string) bool {
	out := cmd.OutOrStdout()
	fields := strings.Fields(line)
	name := fields[0]
	args := fields[1:]

	report := func(err error) {
		if err != nil {
			fmt.Fprintln(out, gateway.Describe(err))
		}
	}

	switch name {
	case "/quit", "/exit":
		return true
	case "/help":
		printRunHelp(out)
	case "/status":
		printShortStatus(ctx, a, out)
	case "/cv":
		if len(args) != 1 {
			fmt.Fprintln(out, "usage: /cv <file.pdf>")
			break
		}
		if _, err := a.uploads.SelectFile(args[0]); err != nil {
			report(err)
			break
		}
		document, err := a.uploads.Submit(ctx)
		if err != nil {
			report(err)
			break
		}
		report(a.sessions.MarkDocument(ctx, document.NeedsClarification))
		fmt.Fprintf(out, "CV parsed: %s\n", document.CVData.Name)
		for _, question := range document.Questions {
			fmt.Fprintf(out, "  - %s\n", question)
		}
		report(saveWorkspace(ctx, a))
	case "/job":
		if len(args) == 0 {
			fmt.Fprintln(out, "usage: /job <url or description>")
			break
		}
		input := a.requirements.SetRawInput(strings.Join(args, " "))
		fmt.Fprintln(out, describeInput(input))
		report(saveWorkspace(ctx, a))
	case "/skip":
		if err := a.pipeline.SkipRequirements(ctx); err != nil {
			report(err)
			break
		}
		fmt.Fprintln(out, "Requirements step skipped.")
		report(saveWorkspace(ctx, a))
	case "/analyze":
		plan, err := a.pipeline.StartAnalysis(ctx)
		if err != nil {
			report(err)
			break
		}
		if plan != nil && plan.Reasoning != "" {
			fmt.Fprintln(out, plan.Reasoning)
		}
		fmt.Fprintln(out, "Chat is ready.")
		report(saveWorkspace(ctx, a))
	case "/record":
		runRecordFlow(ctx, a, scanner, out)
	case "/suggest":
		if hint := a.chat.NextAction(); hint != "" {
			fmt.Fprintln(out, hint)
		} else {
			fmt.Fprintln(out, "No suggestion from the assistant yet.")
		}
	case "/generate":
		runGenerateFlow(ctx, a, args, out)
	case "/fetch":
		if len(args) != 1 {
			fmt.Fprintln(out, "usage: /fetch <filename>")
			break
		}
		local, err := a.writer.Fetch(ctx, args[0])
		if err != nil {
			report(err)
			break
		}
		fmt.Fprintf(out, "Saved %s\n", local)
	default:
		fmt.Fprintf(out, "Unknown command %s. Type /help.\n", name)
	}
	return false
}

// runRecordFlow captures until the next Enter, then transcribes into the
// chat input buffer so the transcript can be reviewed before sending.
func runRecordFlow(ctx context.Context, a *app, scanner *bufio.Scanner, out io.Writer) {
	if err := a.recorder.Start(ctx); err != nil {
		fmt.Fprintln(out, gateway.Describe(err))
		return
	}
	fmt.Fprintln(out, "Recording... press Enter to stop.")

	meterDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-meterDone:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := a.recorder.Snapshot()
				fmt.Fprintf(os.Stderr, "\r%s %s", formatElapsed(snap.Elapsed), levelBar(snap.Level))
			}
		}
	}()

	scanner.Scan()
	close(meterDone)
	fmt.Fprintln(os.Stderr)

	if ctx.Err() != nil {
		a.recorder.Abort()
		return
	}
	result, err := a.recorder.Stop(ctx)
	if err != nil {
		fmt.Fprintln(out, gateway.Describe(err))
		return
	}
	if result.Text == "" {
		fmt.Fprintln(out, "Nothing was recognized.")
		return
	}
	fmt.Fprintln(out, "Transcript captured; press Enter to send it, or keep typing to extend it.")
}

func runGenerateFlow(ctx context.Context, a *app, args []string, out io.Writer) {
	if len(args) < 1 {
		fmt.Fprintln(out, "usage: /generate cv|letter [output.pdf]")
		return
	}
	document := a.uploads.Document()
	if !document.Accepted() {
		fmt.Fprintln(out, "Upload a CV first.")
		return
	}

	var err error
	switch args[0] {
	case "cv":
		output := "tailored_cv.pdf"
		if len(args) > 1 {
			output = args[1]
		}
		plan := a.pipeline.Plan()
		if plan == nil {
			fmt.Fprintln(out, "Run /analyze first.")
			return
		}
		artifact, genErr := a.writer.GenerateCV(ctx, document.CVData, plan, output)
		if genErr != nil {
			err = genErr
		} else {
			fmt.Fprintf(out, "Generated %s — /fetch %s to download it.\n", artifact.Filename, artifact.Filename)
		}
	case "letter", "cover-letter":
		output := "cover_letter.pdf"
		if len(args) > 1 {
			output = args[1]
		}
		job := a.requirements.Job()
		if job == nil {
			fmt.Fprintln(out, "Extract job requirements first.")
			return
		}
		artifact, genErr := a.writer.GenerateCoverLetter(ctx, document.CVData, job, a.requirements.Company(), output, "")
		if genErr != nil {
			err = genErr
		} else {
			fmt.Fprintf(out, "Generated %s — /fetch %s to download it.\n", artifact.Filename, artifact.Filename)
		}
	default:
		fmt.Fprintln(out, "usage: /generate cv|letter [output.pdf]")
		return
	}
	if err != nil {
		fmt.Fprintln(out, gateway.Describe(err))
		return
	}
	if err := saveWorkspace(ctx, a); err != nil {
		fmt.Fprintln(out, gateway.Describe(err))
	}
}

func printShortStatus(ctx context.Context, a *app, out io.Writer) {
	current, err := a.sessions.Current(ctx)
	if err != nil || current == nil {
		fmt.Fprintln(out, "No session.")
		return
	}
	document := a.uploads.Document()
	job := a.requirements.Job()
	fmt.Fprintf(out, "Stage %s | CV %s | requirements %s | plan %s\n",
		current.Stage.Title(),
		yesNo(document.Accepted()),
		yesNo(job != nil || current.RequirementsSkipped),
		yesNo(a.pipeline.Plan() != nil),
	)
}

func printRunHelp(out io.Writer) {
	fmt.Fprint(out, `Commands:
  /cv <file.pdf>            select and upload the CV
  /job <url or text>        set the job posting input
  /skip                     skip the requirements step
  /analyze                  run extraction and alignment analysis
  /record                   record voice input (Enter stops)
  /suggest                  show the assistant's suggested next step
  /generate cv|letter [f]   generate a tailored document
  /fetch <filename>         download a generated file
  /status                   one-line workflow status
  /quit                     save and exit

Anything else is sent to the assistant as a chat message.
`)
}

func watchStageChanges(ctx context.Context, a *app, out io.Writer) {
	messages, err := a.bus.Subscribe(ctx, bus.TopicStageChanged)
	if err != nil {
		return
	}
	for msg := range messages {
		var event bus.StageChanged
		if err := bus.Decode(msg, &event); err != nil {
			continue
		}
		fmt.Fprintf(out, "\n(stage: %s)\n", event.Stage)
	}
}

func watchDeviceEvents(a *app, out io.Writer) {
	events := a.monitor.Events()
	if events == nil {
		return
	}
	for event := range events {
		fmt.Fprintf(out, "\n(capture device %s: %s)\n", event.Action, event.Device)
	}
}
