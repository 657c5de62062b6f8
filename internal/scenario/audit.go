package scenario

// LevelIssue reports a decision whose authored level disagrees with its
// distance from the entry decision.
type LevelIssue struct {
	DecisionID string `json:"decisionId"`
	Level      int    `json:"level"`
	Depth      int    `json:"depth"`
	Reachable  bool   `json:"reachable"`
}

// DanglingRef is a choice pointing at a decision id that does not exist.
type DanglingRef struct {
	DecisionID string `json:"decisionId"`
	ChoiceID   string `json:"choiceId"`
	TargetID   string `json:"targetId"`
}

// Audit summarises structural findings. None of them prevent playback.
type Audit struct {
	EntryID      string        `json:"entryId,omitempty"`
	ExtraEntries []string      `json:"extraEntries,omitempty"`
	Levels       []LevelIssue  `json:"levels,omitempty"`
	Dangling     []DanglingRef `json:"dangling,omitempty"`
	DuplicateIDs []string      `json:"duplicateIds,omitempty"`
}

// Clean reports whether the audit found nothing.
func (a Audit) Clean() bool {
	return a.EntryID != "" && len(a.ExtraEntries) == 0 && len(a.Levels) == 0 &&
		len(a.Dangling) == 0 && len(a.DuplicateIDs) == 0
}

// AuditLevels compares each decision's level with its breadth-first depth
// from the entry (entry depth 1). Levels are trusted as authored; this only reports.
func AuditLevels(sc Scenario) Audit {
	var a Audit
	index := sc.index()

	seen := make(map[string]bool, len(sc.Decisions))
	for _, d := range sc.Decisions {
		if seen[d.ID] {
			a.DuplicateIDs = append(a.DuplicateIDs, d.ID)
		}
		seen[d.ID] = true
		for _, c := range d.Choices {
			if c.NextDecisionID == "" {
				continue
			}
			if _, ok := index[c.NextDecisionID]; !ok {
				a.Dangling = append(a.Dangling, DanglingRef{DecisionID: d.ID, ChoiceID: c.ID, TargetID: c.NextDecisionID})
			}
		}
	}

	entry, ok := sc.Entry()
	if !ok {
		return a
	}
	a.EntryID = entry.ID
	for _, d := range sc.Decisions {
		if d.Level == 1 && d.ID != entry.ID {
			a.ExtraEntries = append(a.ExtraEntries, d.ID)
		}
	}

	depth := map[string]int{entry.ID: 1}
	queue := []string{entry.ID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, c := range index[id].Choices {
			next, ok := index[c.NextDecisionID]
			if !ok || c.NextDecisionID == "" {
				continue
			}
			if _, done := depth[next.ID]; done {
				continue
			}
			depth[next.ID] = depth[id] + 1
			queue = append(queue, next.ID)
		}
	}

	reported := make(map[string]bool)
	for _, d := range sc.Decisions {
		if reported[d.ID] {
			continue
		}
		reported[d.ID] = true
		dep, reachable := depth[d.ID]
		if reachable && dep == d.Level {
			continue
		}
		a.Levels = append(a.Levels, LevelIssue{DecisionID: d.ID, Level: d.Level, Depth: dep, Reachable: reachable})
	}
	return a
}
