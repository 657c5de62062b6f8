// Package scenario implements branching decision scenarios: an interactive
// player that walks the decision graph one learner choice at a time, and a
// static level-grouping analysis used to render scenario overviews.
package scenario

import (
	"errors"
	"strings"
)

// ErrNotFound is returned by sources when a scenario does not exist.
var ErrNotFound = errors.New("scenario not found")

// BranchType classifies a choice for feedback styling and expansion precedence.
type BranchType string

const (
	BranchSuccess BranchType = "success"
	BranchNeutral BranchType = "neutral"
	BranchFailure BranchType = "failure"
	BranchUnknown BranchType = "unknown"
)

// ParseBranchType maps a tag case-insensitively; anything unrecognised is BranchUnknown.
func ParseBranchType(s string) BranchType {
	switch BranchType(strings.ToLower(strings.TrimSpace(s))) {
	case BranchSuccess:
		return BranchSuccess
	case BranchNeutral:
		return BranchNeutral
	case BranchFailure:
		return BranchFailure
	default:
		return BranchUnknown
	}
}

func (b *BranchType) UnmarshalText(text []byte) error {
	*b = ParseBranchType(string(text))
	return nil
}

// precedence orders branch types for expansion: lower expands first.
func (b BranchType) precedence() int {
	switch ParseBranchType(string(b)) {
	case BranchSuccess:
		return 0
	case BranchNeutral:
		return 1
	case BranchFailure:
		return 3
	default:
		return 2
	}
}

// Scenario is a branching decision scenario.
type Scenario struct {
	ID            string     `json:"id" yaml:"id"`
	Title         string     `json:"title" yaml:"title"`
	Description   string     `json:"description,omitempty" yaml:"description"`
	AvatarURL     string     `json:"avatarUrl,omitempty" yaml:"avatar_url"`
	BackgroundURL string     `json:"backgroundUrl,omitempty" yaml:"background_url"`
	MaxAttempts   int        `json:"maxAttempts,omitempty" yaml:"max_attempts"`
	Decisions     []Decision `json:"decisions" yaml:"decisions"`
}

// Decision is a branching point. Level is author supplied and not derived
// from graph distance.
type Decision struct {
	ID          string   `json:"id" yaml:"id"`
	Level       int      `json:"level" yaml:"level"`
	Title       string   `json:"title,omitempty" yaml:"title"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Choices     []Choice `json:"choices" yaml:"choices"`
}

// Choice is a selectable option of a decision. An empty NextDecisionID ends the path.
type Choice struct {
	ID             string     `json:"id" yaml:"id"`
	Text           string     `json:"text" yaml:"text"`
	BranchType     BranchType `json:"branchType" yaml:"branch_type"`
	Feedback       string     `json:"feedback,omitempty" yaml:"feedback"`
	Points         int        `json:"points" yaml:"points"`
	NextDecisionID string     `json:"nextDecisionId,omitempty" yaml:"next_decision_id"`
}

// Branch returns the choice's branch type with unset values reported as unknown.
func (c Choice) Branch() BranchType {
	return ParseBranchType(string(c.BranchType))
}

// Entry returns the first decision at level 1, in array order.
func (s Scenario) Entry() (Decision, bool) {
	for _, d := range s.Decisions {
		if d.Level == 1 {
			return d, true
		}
	}
	return Decision{}, false
}

// Decision returns the decision with the given id.
func (s Scenario) Decision(id string) (Decision, bool) {
	if id == "" {
		return Decision{}, false
	}
	for _, d := range s.Decisions {
		if d.ID == id {
			return d, true
		}
	}
	return Decision{}, false
}

// Choice returns the choice with the given id.
func (d Decision) Choice(id string) (Choice, bool) {
	for _, c := range d.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

// index maps decision ids to decisions. The first decision wins on duplicate ids.
func (s Scenario) index() map[string]Decision {
	idx := make(map[string]Decision, len(s.Decisions))
	for _, d := range s.Decisions {
		if _, dup := idx[d.ID]; !dup {
			idx[d.ID] = d
		}
	}
	return idx
}

// normalize lower-cases branch types after decoding from loosely typed sources.
func (s *Scenario) normalize() {
	for i := range s.Decisions {
		for j := range s.Decisions[i].Choices {
			c := &s.Decisions[i].Choices[j]
			c.BranchType = c.Branch()
		}
	}
}
