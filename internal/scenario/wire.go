package scenario

import (
	"encoding/json"
	"fmt"

	"github.com/p-n-ai/pai-learn/internal/platform/flexjson"
)

// WireScenario is the scenario payload returned by the backend's
// getSpecificScenario endpoint.
type WireScenario struct {
	ID            flexjson.String `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	AvatarURL     string          `json:"avatar_url"`
	BackgroundURL string          `json:"background_url"`
	MaxAttempts   flexjson.Int    `json:"max_attempts"`
	Decisions     []WireDecision  `json:"decisions"`
}

// WireDecision is a decision as sent by the backend.
type WireDecision struct {
	ID            flexjson.String `json:"id"`
	DecisionOrder flexjson.Int    `json:"decisionOrder"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Choices       []WireChoice    `json:"choices"`
}

// WireChoice is a choice as sent by the backend.
type WireChoice struct {
	ID             flexjson.String `json:"id"`
	Text           string          `json:"text"`
	BranchType     string          `json:"branch_type"`
	Feedback       string          `json:"feedback"`
	NextDecisionID flexjson.String `json:"next_decision_id"`
	Points         flexjson.Int    `json:"points"`
}

// FromWire maps the backend payload onto the internal model: decisionOrder
// becomes Level and branch types are lower-cased.
func FromWire(w WireScenario) Scenario {
	sc := Scenario{
		ID:            string(w.ID),
		Title:         w.Title,
		Description:   w.Description,
		AvatarURL:     w.AvatarURL,
		BackgroundURL: w.BackgroundURL,
		MaxAttempts:   int(w.MaxAttempts),
		Decisions:     make([]Decision, 0, len(w.Decisions)),
	}
	for _, wd := range w.Decisions {
		d := Decision{
			ID:          string(wd.ID),
			Level:       int(wd.DecisionOrder),
			Title:       wd.Title,
			Description: wd.Description,
			Choices:     make([]Choice, 0, len(wd.Choices)),
		}
		for _, wc := range wd.Choices {
			d.Choices = append(d.Choices, Choice{
				ID:             string(wc.ID),
				Text:           wc.Text,
				BranchType:     ParseBranchType(wc.BranchType),
				Feedback:       wc.Feedback,
				Points:         int(wc.Points),
				NextDecisionID: string(wc.NextDecisionID),
			})
		}
		sc.Decisions = append(sc.Decisions, d)
	}
	return sc
}

// DecodeWire validates and decodes a backend scenario payload. id is used
// when the payload carries none.
func DecodeWire(id string, data []byte) (Scenario, error) {
	if err := ValidateWire(data); err != nil {
		return Scenario{}, err
	}
	var w WireScenario
	if err := json.Unmarshal(data, &w); err != nil {
		return Scenario{}, fmt.Errorf("decode scenario: %w", err)
	}
	sc := FromWire(w)
	if sc.ID == "" {
		sc.ID = id
	}
	return sc, nil
}
