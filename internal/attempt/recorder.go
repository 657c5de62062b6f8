package attempt

import (
	"context"
	"log/slog"
	"sync"

	"github.com/p-n-ai/pai-learn/internal/scenario"
)

// Recorder ties a scenario player to the playthrough store and event log.
type Recorder struct {
	store  Store
	events EventLogger
}

// NewRecorder creates a Recorder. A nil logger disables events.
func NewRecorder(store Store, events EventLogger) *Recorder {
	if events == nil {
		events = NopEventLogger{}
	}
	return &Recorder{store: store, events: events}
}

// Start opens a playthrough, enforcing the scenario's MaxAttempts (0 means unlimited).
func (r *Recorder) Start(ctx context.Context, sc scenario.Scenario, learnerID string) (Playthrough, error) {
	if sc.MaxAttempts > 0 {
		n, err := r.store.CountAttempts(ctx, sc.ID, learnerID)
		if err != nil {
			return Playthrough{}, err
		}
		if n >= sc.MaxAttempts {
			return Playthrough{}, ErrAttemptsExhausted
		}
	}

	p, err := r.store.Create(ctx, Playthrough{ScenarioID: sc.ID, LearnerID: learnerID})
	if err != nil {
		return Playthrough{}, err
	}
	r.log(ctx, Event{
		LearnerID: learnerID,
		SubjectID: sc.ID,
		Type:      EventScenarioStarted,
		Data:      map[string]any{"playthrough_id": p.ID},
	})
	return p, nil
}

// Observer returns a player observer that logs each choice and stores the
// result once the playthrough completes.
func (r *Recorder) Observer(ctx context.Context, p Playthrough) func(scenario.Snapshot) {
	ctx = context.WithoutCancel(ctx)
	var mu sync.Mutex
	seen := 0
	completed := false

	return func(snap scenario.Snapshot) {
		mu.Lock()
		defer mu.Unlock()

		if len(snap.History) < seen {
			seen = 0
			completed = false
		}
		for _, sel := range snap.History[seen:] {
			r.log(ctx, Event{
				LearnerID: p.LearnerID,
				SubjectID: p.ScenarioID,
				Type:      EventChoiceSelected,
				Data: map[string]any{
					"playthrough_id": p.ID,
					"decision_id":    sel.DecisionID,
					"choice_id":      sel.Choice.ID,
					"branch_type":    string(sel.Choice.Branch()),
					"points":         sel.Points,
				},
			})
		}
		seen = len(snap.History)

		if snap.State != scenario.StateComplete || completed {
			return
		}
		completed = true
		if err := r.store.Complete(ctx, p.ID, snap.History, snap.TotalPoints); err != nil {
			slog.Error("failed to store playthrough", "playthrough_id", p.ID, "error", err)
		}
		r.log(ctx, Event{
			LearnerID: p.LearnerID,
			SubjectID: p.ScenarioID,
			Type:      EventScenarioCompleted,
			Data: map[string]any{
				"playthrough_id": p.ID,
				"total_points":   snap.TotalPoints,
				"choices":        len(snap.History),
			},
		})
	}
}

// LogEvent records an event, logging failures instead of returning them.
func (r *Recorder) LogEvent(ctx context.Context, e Event) {
	r.log(ctx, e)
}

func (r *Recorder) log(ctx context.Context, e Event) {
	if err := r.events.LogEvent(ctx, e); err != nil {
		slog.Warn("failed to log event", "type", e.Type, "error", err)
	}
}
