package scenario

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultFeedbackDelay is how long feedback stays on screen before the
// player resolves the next decision on its own.
const DefaultFeedbackDelay = 3 * time.Second

var (
	// ErrNoEntryDecision is returned by Start when no decision has level 1.
	ErrNoEntryDecision = errors.New("scenario has no level 1 decision")
	// ErrInvalidState is returned when an operation does not apply to the current state.
	ErrInvalidState = errors.New("operation not allowed in current state")
	// ErrUnknownChoice is returned when the choice id is not part of the current decision.
	ErrUnknownChoice = errors.New("choice not found in current decision")
	// ErrPlayerClosed is returned after Close.
	ErrPlayerClosed = errors.New("player closed")
)

// State is the player's position in the walk.
type State int

const (
	StateIdle State = iota
	StateAwaitingChoice
	StateShowingFeedback
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingChoice:
		return "awaiting_choice"
	case StateShowingFeedback:
		return "showing_feedback"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for st := StateIdle; st <= StateComplete; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown player state %q", text)
}

// Selection records one choice made during a playthrough.
type Selection struct {
	DecisionID string `json:"decisionId"`
	Choice     Choice `json:"choice"`
	Points     int    `json:"points"`
}

// Snapshot is a copy of the player state handed to observers and callers.
type Snapshot struct {
	ScenarioID  string      `json:"scenarioId"`
	State       State       `json:"state"`
	Decision    *Decision   `json:"decision,omitempty"`
	Feedback    *Choice     `json:"feedback,omitempty"`
	History     []Selection `json:"history"`
	TotalPoints int         `json:"totalPoints"`
}

// PlayerOption configures a Player.
type PlayerOption func(*Player)

// WithFeedbackDelay overrides DefaultFeedbackDelay.
func WithFeedbackDelay(d time.Duration) PlayerOption {
	return func(p *Player) {
		if d >= 0 {
			p.delay = d
		}
	}
}

// WithObserver registers a callback invoked with a snapshot after every transition.
// Callbacks run outside the player's lock and may be called from timer goroutines.
func WithObserver(fn func(Snapshot)) PlayerOption {
	return func(p *Player) {
		if fn != nil {
			p.observers = append(p.observers, fn)
		}
	}
}

// Player walks a scenario one choice at a time. It is safe for concurrent use.
type Player struct {
	scenario  Scenario
	index     map[string]Decision
	delay     time.Duration
	observers []func(Snapshot)

	mu         sync.Mutex
	state      State
	current    Decision
	feedback   Choice
	history    []Selection
	total      int
	timer      *time.Timer
	generation uint64
	closed     bool
}

// NewPlayer creates an idle player for sc.
func NewPlayer(sc Scenario, opts ...PlayerOption) *Player {
	p := &Player{
		scenario: sc,
		index:    sc.index(),
		delay:    DefaultFeedbackDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Scenario returns the scenario being played.
func (p *Player) Scenario() Scenario {
	return p.scenario
}

// Start moves from Idle to the entry decision.
func (p *Player) Start() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPlayerClosed
	}
	if p.state != StateIdle {
		p.mu.Unlock()
		return ErrInvalidState
	}
	entry, ok := p.scenario.Entry()
	if !ok {
		p.mu.Unlock()
		return ErrNoEntryDecision
	}
	p.state = StateAwaitingChoice
	p.current = entry
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.notify(snap)
	return nil
}

// SelectChoice records the choice, adds its points, and shows its feedback.
// The next decision is resolved after the feedback delay or on Advance.
func (p *Player) SelectChoice(choiceID string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPlayerClosed
	}
	if p.state != StateAwaitingChoice {
		p.mu.Unlock()
		return ErrInvalidState
	}
	choice, ok := p.current.Choice(choiceID)
	if !ok {
		p.mu.Unlock()
		return ErrUnknownChoice
	}

	p.history = append(p.history, Selection{
		DecisionID: p.current.ID,
		Choice:     choice,
		Points:     choice.Points,
	})
	p.total += choice.Points
	p.state = StateShowingFeedback
	p.feedback = choice

	gen := p.generation
	p.timer = time.AfterFunc(p.delay, func() { p.resolve(gen) })
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.notify(snap)
	return nil
}

// Advance resolves pending feedback without waiting for the delay.
func (p *Player) Advance() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPlayerClosed
	}
	if p.state != StateShowingFeedback {
		p.mu.Unlock()
		return ErrInvalidState
	}
	p.cancelTimerLocked()
	p.resolveLocked()
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.notify(snap)
	return nil
}

// Reset clears history and points and returns to Idle.
func (p *Player) Reset() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.cancelTimerLocked()
	p.state = StateIdle
	p.current = Decision{}
	p.feedback = Choice{}
	p.history = nil
	p.total = 0
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.notify(snap)
}

// Close stops the player. Pending feedback timers become no-ops.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelTimerLocked()
	p.closed = true
}

// Snapshot returns the current state.
func (p *Player) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// State returns the current state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// resolve runs from the feedback timer. Callbacks from an older generation are stale.
func (p *Player) resolve(gen uint64) {
	p.mu.Lock()
	if p.closed || gen != p.generation || p.state != StateShowingFeedback {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	p.resolveLocked()
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.notify(snap)
}

func (p *Player) resolveLocked() {
	p.generation++
	next, ok := p.index[p.feedback.NextDecisionID]
	if p.feedback.NextDecisionID != "" && ok {
		p.state = StateAwaitingChoice
		p.current = next
	} else {
		p.state = StateComplete
		p.current = Decision{}
	}
	p.feedback = Choice{}
}

func (p *Player) cancelTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.generation++
}

func (p *Player) snapshotLocked() Snapshot {
	snap := Snapshot{
		ScenarioID:  p.scenario.ID,
		State:       p.state,
		History:     make([]Selection, len(p.history)),
		TotalPoints: p.total,
	}
	copy(snap.History, p.history)
	switch p.state {
	case StateAwaitingChoice:
		d := p.current
		snap.Decision = &d
	case StateShowingFeedback:
		d := p.current
		f := p.feedback
		snap.Decision = &d
		snap.Feedback = &f
	}
	return snap
}

func (p *Player) notify(snap Snapshot) {
	for _, fn := range p.observers {
		fn(snap)
	}
}
