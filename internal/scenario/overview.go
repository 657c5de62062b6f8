package scenario

import (
	"fmt"
	"slices"
	"sort"
)

// Target describes where a choice leads in an overview.
type Target string

const (
	// TargetEnd marks a choice without a resolvable next decision.
	TargetEnd Target = "end"
	// TargetExpand marks a choice whose target subtree is rendered under it.
	TargetExpand Target = "expand"
	// TargetJump marks a choice whose target level was already rendered elsewhere.
	TargetJump Target = "jump"
)

// VisitedLevels records which levels have had a decision fully expanded.
// It bounds overview rendering on cyclic and convergent graphs.
type VisitedLevels map[int]struct{}

// NewVisitedLevels returns an empty set.
func NewVisitedLevels() VisitedLevels {
	return make(VisitedLevels)
}

// Visit marks level and reports whether it was newly marked.
func (v VisitedLevels) Visit(level int) bool {
	if _, ok := v[level]; ok {
		return false
	}
	v[level] = struct{}{}
	return true
}

// Has reports whether level was visited.
func (v VisitedLevels) Has(level int) bool {
	_, ok := v[level]
	return ok
}

// Levels returns the visited levels in ascending order.
func (v VisitedLevels) Levels() []int {
	out := make([]int, 0, len(v))
	for l := range v {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

// Column is one level of the overview, decisions in array order.
type Column struct {
	Level     int        `json:"level"`
	Decisions []Decision `json:"decisions"`
}

// Node is an expanded decision in the overview tree.
type Node struct {
	Decision Decision `json:"decision"`
	Branches []Branch `json:"branches"`
}

// Branch is a choice in the overview tree with its resolved target.
type Branch struct {
	Choice      Choice `json:"choice"`
	Target      Target `json:"target"`
	TargetID    string `json:"targetId,omitempty"`
	TargetLevel int    `json:"targetLevel,omitempty"`
	Child       *Node  `json:"child,omitempty"`
}

// Label is the short marker shown next to a choice.
func (b Branch) Label() string {
	switch b.Target {
	case TargetJump:
		return fmt.Sprintf("jump to level %d", b.TargetLevel)
	case TargetExpand:
		return fmt.Sprintf("level %d", b.TargetLevel)
	default:
		return "End"
	}
}

// Overview is the static rendering model of a scenario.
type Overview struct {
	ScenarioID string   `json:"scenarioId"`
	Title      string   `json:"title"`
	Columns    []Column `json:"columns"`
	Tree       *Node    `json:"tree,omitempty"`
}

// Analyze groups decisions by level and expands the tree from the entry decision.
func Analyze(sc Scenario) Overview {
	ov := Overview{
		ScenarioID: sc.ID,
		Title:      sc.Title,
		Columns:    Columns(sc),
	}
	if entry, ok := sc.Entry(); ok {
		ov.Tree = Expand(sc, entry, NewVisitedLevels())
	}
	return ov
}

// Columns groups decisions by level, ascending, keeping array order inside a level.
func Columns(sc Scenario) []Column {
	byLevel := make(map[int][]Decision)
	for _, d := range sc.Decisions {
		byLevel[d.Level] = append(byLevel[d.Level], d)
	}
	levels := make([]int, 0, len(byLevel))
	for l := range byLevel {
		levels = append(levels, l)
	}
	sort.Ints(levels)

	cols := make([]Column, 0, len(levels))
	for _, l := range levels {
		cols = append(cols, Column{Level: l, Decisions: byLevel[l]})
	}
	return cols
}

// Expand renders d and, recursively, the targets of its choices. A level is
// expanded at most once per visited set; later references become jumps.
// Choices are considered in branch precedence order but returned in authored order.
func Expand(sc Scenario, d Decision, visited VisitedLevels) *Node {
	return expand(sc.index(), d, visited)
}

func expand(index map[string]Decision, d Decision, visited VisitedLevels) *Node {
	visited.Visit(d.Level)
	node := &Node{Decision: d, Branches: make([]Branch, len(d.Choices))}

	for _, i := range precedenceOrder(d.Choices) {
		c := d.Choices[i]
		b := Branch{Choice: c, Target: TargetEnd}
		if target, ok := index[c.NextDecisionID]; ok && c.NextDecisionID != "" {
			b.TargetID = target.ID
			b.TargetLevel = target.Level
			if visited.Has(target.Level) {
				b.Target = TargetJump
			} else {
				b.Target = TargetExpand
				b.Child = expand(index, target, visited)
			}
		}
		node.Branches[i] = b
	}
	return node
}

// precedenceOrder returns choice indices sorted success, neutral, unknown, failure.
func precedenceOrder(choices []Choice) []int {
	order := make([]int, len(choices))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return choices[a].BranchType.precedence() - choices[b].BranchType.precedence()
	})
	return order
}

// Walk calls fn for every node in the tree, depth first.
func (n *Node) Walk(fn func(depth int, n *Node)) {
	n.walk(0, fn)
}

func (n *Node) walk(depth int, fn func(int, *Node)) {
	if n == nil {
		return
	}
	fn(depth, n)
	for _, b := range n.Branches {
		b.Child.walk(depth+1, fn)
	}
}

// Expansions counts fully expanded decisions per level.
func (ov Overview) Expansions() map[int]int {
	counts := make(map[int]int)
	ov.Tree.Walk(func(_ int, n *Node) {
		counts[n.Decision.Level]++
	})
	return counts
}

// BranchFor finds how the tree resolved a choice. Decisions that were
// rendered only as jump targets are not part of the tree.
func (ov Overview) BranchFor(decisionID, choiceID string) (Branch, bool) {
	var found Branch
	var ok bool
	ov.Tree.Walk(func(_ int, n *Node) {
		if ok || n.Decision.ID != decisionID {
			return
		}
		for _, b := range n.Branches {
			if b.Choice.ID == choiceID {
				found, ok = b, true
				return
			}
		}
	})
	return found, ok
}
