package scenario

import (
	"context"
	"fmt"
	"strings"

	"github.com/p-n-ai/pai-learn/internal/ai"
)

const debriefSystemPrompt = `You are a workplace coach reviewing a learner's run through a branching decision scenario.
Write a short debrief (at most 120 words) in plain text: one sentence on the overall outcome,
then what went well and what to try differently next time. Refer to the learner as "you".`

// Completer is the subset of ai.Router used for debriefs.
type Completer interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (ai.CompletionResponse, error)
}

// Debriefer produces a short AI-written debrief of a finished playthrough.
type Debriefer struct {
	ai        Completer
	maxTokens int
}

// NewDebriefer creates a Debriefer backed by c.
func NewDebriefer(c Completer) *Debriefer {
	return &Debriefer{ai: c, maxTokens: 300}
}

// Debrief asks the AI service to comment on snap. Only completed
// playthroughs are accepted.
func (d *Debriefer) Debrief(ctx context.Context, sc Scenario, snap Snapshot) (string, error) {
	if snap.State != StateComplete {
		return "", ErrInvalidState
	}

	resp, err := d.ai.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "system", Content: debriefSystemPrompt},
			{Role: "user", Content: debriefPrompt(sc, snap)},
		},
		MaxTokens: d.maxTokens,
		Task:      ai.TaskDebrief,
	})
	if err != nil {
		return "", fmt.Errorf("debrief: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

func debriefPrompt(sc Scenario, snap Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scenario: %s\n", sc.Title)
	if sc.Description != "" {
		fmt.Fprintf(&b, "Context: %s\n", sc.Description)
	}
	b.WriteString("\nChoices made:\n")
	for i, sel := range snap.History {
		d, ok := sc.Decision(sel.DecisionID)
		if !ok {
			d.ID = sel.DecisionID
		}
		fmt.Fprintf(&b, "%d. %s\n   chose: %s (%s, %d points)\n", i+1, decisionLabel(d), sel.Choice.Text, sel.Choice.Branch(), sel.Points)
		if sel.Choice.Feedback != "" {
			fmt.Fprintf(&b, "   feedback shown: %s\n", sel.Choice.Feedback)
		}
	}
	fmt.Fprintf(&b, "\nTotal points: %d\n", snap.TotalPoints)
	return b.String()
}
