package scenario

import "testing"

func TestParseBranchType(t *testing.T) {
	tests := []struct {
		in   string
		want BranchType
	}{
		{"success", BranchSuccess},
		{"SUCCESS", BranchSuccess},
		{" Neutral ", BranchNeutral},
		{"failure", BranchFailure},
		{"fail", BranchUnknown},
		{"", BranchUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseBranchType(tt.in); got != tt.want {
				t.Errorf("ParseBranchType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBranchType_Precedence(t *testing.T) {
	order := []BranchType{BranchSuccess, BranchNeutral, BranchUnknown, BranchFailure}
	for i := 1; i < len(order); i++ {
		if order[i-1].precedence() >= order[i].precedence() {
			t.Errorf("%s should precede %s", order[i-1], order[i])
		}
	}
	if BranchType("").precedence() != BranchUnknown.precedence() {
		t.Error("unset branch type should rank as unknown")
	}
}

func TestScenario_Entry(t *testing.T) {
	sc := Scenario{Decisions: []Decision{
		{ID: "b", Level: 2},
		{ID: "a1", Level: 1},
		{ID: "a2", Level: 1},
	}}

	entry, ok := sc.Entry()
	if !ok || entry.ID != "a1" {
		t.Errorf("Entry() = %q, %v; want a1, true", entry.ID, ok)
	}

	if _, ok := (Scenario{Decisions: []Decision{{ID: "x", Level: 2}}}).Entry(); ok {
		t.Error("Entry() should fail without a level 1 decision")
	}
}

func TestScenario_IndexFirstWins(t *testing.T) {
	sc := Scenario{Decisions: []Decision{
		{ID: "a", Level: 1, Title: "first"},
		{ID: "a", Level: 3, Title: "second"},
	}}
	if got := sc.index()["a"].Title; got != "first" {
		t.Errorf("index()[a].Title = %q, want first", got)
	}
	if d, _ := sc.Decision("a"); d.Title != "first" {
		t.Errorf("Decision(a).Title = %q, want first", d.Title)
	}
}
