package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"tailor/internal/session"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func newStatusCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the workflow position and what is still missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := cctx.ensureApp(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			current, err := a.sessions.Current(ctx)
			if err != nil {
				return err
			}
			if current != nil {
				// Best effort: an unreachable backend still gets a local view.
				if synced, err := a.sessions.FetchRemoteState(ctx); err == nil {
					current = synced
				}
			}

			lines := renderSectionHeader("Session", colorize)
			if current == nil {
				lines = append(lines, renderStatusLine("Session", statusWarn, "not started", colorize))
			} else {
				lines = append(lines,
					renderStatusLine("Session", statusOK, current.ID, colorize),
					renderStatusLine("Stage", stageKind(current.Stage), current.Stage.Title(), colorize),
				)
				if current.NeedsClarification {
					lines = append(lines, renderStatusLine("Clarification", statusWarn, "the assistant has open questions", colorize))
				}
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Inputs", colorize)...)

			document := a.uploads.Document()
			switch {
			case document == nil:
				lines = append(lines, renderStatusLine("CV", statusWarn, "not selected", colorize))
			case document.Accepted():
				lines = append(lines, renderStatusLine("CV", statusOK, fmt.Sprintf("%s (parsed)", document.Path), colorize))
			default:
				lines = append(lines, renderStatusLine("CV", statusInfo, fmt.Sprintf("%s (not uploaded yet)", document.Path), colorize))
			}

			skipped := current != nil && current.RequirementsSkipped
			job := a.requirements.Job()
			input := a.requirements.Input()
			switch {
			case skipped:
				lines = append(lines, renderStatusLine("Requirements", statusInfo, "skipped", colorize))
			case job != nil:
				lines = append(lines, renderStatusLine("Requirements", statusOK, job.JobTitle, colorize))
			case input.Valid():
				lines = append(lines, renderStatusLine("Requirements", statusInfo, "input set, not submitted", colorize))
			default:
				lines = append(lines, renderStatusLine("Requirements", statusWarn, "missing", colorize))
			}

			if company := a.requirements.Company(); company != nil {
				lines = append(lines, renderStatusLine("Company", statusOK, company.CompanyName, colorize))
			}
			if a.pipeline.Plan() != nil {
				lines = append(lines, renderStatusLine("Tailoring plan", statusOK, "ready", colorize))
			}

			if known := a.writer.Known(); len(known) > 0 {
				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Artifacts", colorize)...)
				for _, artifact := range known {
					lines = append(lines, renderStatusLine(artifact.Kind, statusOK, artifact.Filename, colorize))
				}
			}

			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
}

func stageKind(stage session.Stage) statusKind {
	switch stage {
	case session.StageChatReady:
		return statusOK
	case session.StageAnalyzing:
		return statusInfo
	default:
		return statusWarn
	}
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
