package scenario_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/p-n-ai/pai-learn/internal/scenario"
)

func branching() scenario.Scenario {
	return scenario.Scenario{
		ID:    "s1",
		Title: "Branching",
		Decisions: []scenario.Decision{
			{ID: "d1", Level: 1, Choices: []scenario.Choice{
				{ID: "good", Text: "Good", BranchType: scenario.BranchSuccess, Points: 10, NextDecisionID: "d2"},
				{ID: "bad", Text: "Bad", BranchType: scenario.BranchFailure, Points: -5, NextDecisionID: "d3"},
			}},
			{ID: "d2", Level: 2, Choices: []scenario.Choice{
				{ID: "finish", Text: "Finish", BranchType: scenario.BranchSuccess, Points: 5},
				{ID: "loop", Text: "Loop", BranchType: scenario.BranchNeutral, Points: 1, NextDecisionID: "d1"},
			}},
			{ID: "d3", Level: 2, Choices: []scenario.Choice{
				{ID: "lost", Text: "Lost", NextDecisionID: "missing"},
			}},
		},
	}
}

func TestPlayer_WalkWithAdvance(t *testing.T) {
	p := scenario.NewPlayer(branching(), scenario.WithFeedbackDelay(time.Hour))
	defer p.Close()

	if p.State() != scenario.StateIdle {
		t.Fatalf("initial state = %s, want idle", p.State())
	}
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	steps := []struct {
		choice       string
		wantDecision string
	}{
		{"good", "d2"},
		{"loop", "d1"},
		{"good", "d2"},
		{"finish", ""},
	}
	for _, step := range steps {
		if err := p.SelectChoice(step.choice); err != nil {
			t.Fatalf("SelectChoice(%s) error = %v", step.choice, err)
		}
		snap := p.Snapshot()
		if snap.State != scenario.StateShowingFeedback || snap.Feedback == nil || snap.Feedback.ID != step.choice {
			t.Fatalf("after SelectChoice(%s) snapshot = %+v", step.choice, snap)
		}
		if err := p.Advance(); err != nil {
			t.Fatalf("Advance() error = %v", err)
		}
		snap = p.Snapshot()
		if step.wantDecision == "" {
			if snap.State != scenario.StateComplete {
				t.Fatalf("state = %s, want complete", snap.State)
			}
			continue
		}
		if snap.Decision == nil || snap.Decision.ID != step.wantDecision {
			t.Fatalf("after %s decision = %+v, want %s", step.choice, snap.Decision, step.wantDecision)
		}
	}

	snap := p.Snapshot()
	if len(snap.History) != 4 {
		t.Fatalf("history length = %d, want 4", len(snap.History))
	}
	sum := 0
	for _, sel := range snap.History {
		sum += sel.Points
	}
	if snap.TotalPoints != sum || sum != 26 {
		t.Errorf("TotalPoints = %d, sum of history = %d, want 26", snap.TotalPoints, sum)
	}
	if snap.History[1].DecisionID != "d2" || snap.History[1].Choice.ID != "loop" {
		t.Errorf("history[1] = %+v", snap.History[1])
	}
}

func TestPlayer_DanglingNextCompletes(t *testing.T) {
	p := scenario.NewPlayer(branching(), scenario.WithFeedbackDelay(time.Hour))
	defer p.Close()

	mustDo(t, p.Start())
	mustDo(t, p.SelectChoice("bad"))
	mustDo(t, p.Advance())
	mustDo(t, p.SelectChoice("lost"))
	mustDo(t, p.Advance())

	snap := p.Snapshot()
	if snap.State != scenario.StateComplete {
		t.Fatalf("state = %s, want complete", snap.State)
	}
	if snap.TotalPoints != -5 {
		t.Errorf("TotalPoints = %d, want -5", snap.TotalPoints)
	}
}

func TestPlayer_Errors(t *testing.T) {
	t.Run("no entry decision", func(t *testing.T) {
		p := scenario.NewPlayer(scenario.Scenario{Decisions: []scenario.Decision{{ID: "x", Level: 2}}})
		if err := p.Start(); !errors.Is(err, scenario.ErrNoEntryDecision) {
			t.Fatalf("Start() error = %v, want ErrNoEntryDecision", err)
		}
	})

	t.Run("select before start", func(t *testing.T) {
		p := scenario.NewPlayer(branching())
		if err := p.SelectChoice("good"); !errors.Is(err, scenario.ErrInvalidState) {
			t.Fatalf("SelectChoice() error = %v, want ErrInvalidState", err)
		}
	})

	t.Run("unknown choice", func(t *testing.T) {
		p := scenario.NewPlayer(branching())
		mustDo(t, p.Start())
		if err := p.SelectChoice("finish"); !errors.Is(err, scenario.ErrUnknownChoice) {
			t.Fatalf("SelectChoice() error = %v, want ErrUnknownChoice", err)
		}
		if p.State() != scenario.StateAwaitingChoice {
			t.Errorf("state = %s, want awaiting_choice", p.State())
		}
	})

	t.Run("double start", func(t *testing.T) {
		p := scenario.NewPlayer(branching())
		mustDo(t, p.Start())
		if err := p.Start(); !errors.Is(err, scenario.ErrInvalidState) {
			t.Fatalf("Start() error = %v, want ErrInvalidState", err)
		}
	})

	t.Run("advance without feedback", func(t *testing.T) {
		p := scenario.NewPlayer(branching())
		mustDo(t, p.Start())
		if err := p.Advance(); !errors.Is(err, scenario.ErrInvalidState) {
			t.Fatalf("Advance() error = %v, want ErrInvalidState", err)
		}
	})

	t.Run("after close", func(t *testing.T) {
		p := scenario.NewPlayer(branching())
		p.Close()
		if err := p.Start(); !errors.Is(err, scenario.ErrPlayerClosed) {
			t.Fatalf("Start() error = %v, want ErrPlayerClosed", err)
		}
	})
}

func TestPlayer_FeedbackTimerResolves(t *testing.T) {
	snaps := make(chan scenario.Snapshot, 8)
	p := scenario.NewPlayer(branching(),
		scenario.WithFeedbackDelay(10*time.Millisecond),
		scenario.WithObserver(func(s scenario.Snapshot) { snaps <- s }),
	)
	defer p.Close()

	mustDo(t, p.Start())
	mustDo(t, p.SelectChoice("good"))

	want := []scenario.State{scenario.StateAwaitingChoice, scenario.StateShowingFeedback, scenario.StateAwaitingChoice}
	for i, w := range want {
		select {
		case s := <-snaps:
			if s.State != w {
				t.Fatalf("snapshot %d state = %s, want %s", i, s.State, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for snapshot %d", i)
		}
	}
	if d := p.Snapshot().Decision; d == nil || d.ID != "d2" {
		t.Fatalf("decision after timer = %+v, want d2", d)
	}
}

func TestPlayer_CloseCancelsPendingFeedback(t *testing.T) {
	var mu sync.Mutex
	var notified int
	p := scenario.NewPlayer(branching(),
		scenario.WithFeedbackDelay(20*time.Millisecond),
		scenario.WithObserver(func(scenario.Snapshot) {
			mu.Lock()
			notified++
			mu.Unlock()
		}),
	)

	mustDo(t, p.Start())
	mustDo(t, p.SelectChoice("good"))
	p.Close()

	time.Sleep(80 * time.Millisecond)

	if got := p.State(); got != scenario.StateShowingFeedback {
		t.Errorf("state after close = %s, want showing_feedback", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if notified != 2 {
		t.Errorf("observer called %d times, want 2", notified)
	}
}

func TestPlayer_ResetDiscardsStaleTimer(t *testing.T) {
	p := scenario.NewPlayer(branching(), scenario.WithFeedbackDelay(20*time.Millisecond))
	defer p.Close()

	mustDo(t, p.Start())
	mustDo(t, p.SelectChoice("good"))
	p.Reset()

	snap := p.Snapshot()
	if snap.State != scenario.StateIdle || len(snap.History) != 0 || snap.TotalPoints != 0 {
		t.Fatalf("snapshot after reset = %+v", snap)
	}

	mustDo(t, p.Start())
	time.Sleep(80 * time.Millisecond)

	if got := p.State(); got != scenario.StateAwaitingChoice {
		t.Fatalf("state = %s, stale timer must not advance a new run", got)
	}
	if d := p.Snapshot().Decision; d == nil || d.ID != "d1" {
		t.Fatalf("decision = %+v, want d1", d)
	}
}

func mustDo(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func TestState_UnmarshalText(t *testing.T) {
	var s scenario.State
	if err := s.UnmarshalText([]byte("showing_feedback")); err != nil || s != scenario.StateShowingFeedback {
		t.Errorf("UnmarshalText(showing_feedback) = %v, %v", s, err)
	}
	if err := s.UnmarshalText([]byte("paused")); err == nil {
		t.Error("UnmarshalText(paused) expected error")
	}
}
