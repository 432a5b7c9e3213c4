package session

import "fmt"

// Stage identifies a step of the tailoring pipeline. Stages are ordered and
// only move forward; the sole way back is a session reset.
type Stage int

const (
	StageCollectingDocument Stage = iota
	StageCollectingRequirements
	StageAnalyzing
	StageChatReady
)

var stageNames = map[Stage]string{
	StageCollectingDocument:     "collecting_document",
	StageCollectingRequirements: "collecting_requirements",
	StageAnalyzing:              "analyzing",
	StageChatReady:              "chat_ready",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Title returns the stage name formatted for display.
func (s Stage) Title() string {
	switch s {
	case StageCollectingDocument:
		return "Collecting CV"
	case StageCollectingRequirements:
		return "Collecting job requirements"
	case StageAnalyzing:
		return "Analyzing alignment"
	case StageChatReady:
		return "Chat"
	default:
		return s.String()
	}
}

// ParseStage maps a stored stage name back to its enum value.
func ParseStage(value string) (Stage, error) {
	for stage, name := range stageNames {
		if name == value {
			return stage, nil
		}
	}
	return StageCollectingDocument, fmt.Errorf("unknown stage %q", value)
}
