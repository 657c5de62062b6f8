// Package tui is a terminal player for branching scenarios.
package tui

import (
	"context"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/p-n-ai/pai-learn/internal/scenario"
)

// DebriefFunc produces a debrief for a completed playthrough.
type DebriefFunc func(ctx context.Context, snap scenario.Snapshot) (string, error)

// Options configures the player model.
type Options struct {
	NoColor       bool
	FeedbackDelay time.Duration
	Debrief       DebriefFunc
	// Observers receive every snapshot, e.g. to record the playthrough.
	Observers []func(scenario.Snapshot)
}

// Model renders one scenario walk with Bubble Tea.
type Model struct {
	player  *scenario.Player
	changed chan struct{}
	snap    scenario.Snapshot
	cursor  int

	keys    keyMap
	help    help.Model
	spinner spinner.Model
	noColor bool

	debriefFn  DebriefFunc
	debriefing bool
	debrief    string
	err        error
	width      int
}

// NewModel starts a player for sc and wraps it in a model.
func NewModel(sc scenario.Scenario, opts Options) (Model, error) {
	changed := make(chan struct{}, 1)
	playerOpts := []scenario.PlayerOption{
		scenario.WithObserver(func(scenario.Snapshot) {
			select {
			case changed <- struct{}{}:
			default:
			}
		}),
	}
	if opts.FeedbackDelay > 0 {
		playerOpts = append(playerOpts, scenario.WithFeedbackDelay(opts.FeedbackDelay))
	}
	for _, fn := range opts.Observers {
		playerOpts = append(playerOpts, scenario.WithObserver(fn))
	}

	player := scenario.NewPlayer(sc, playerOpts...)
	if err := player.Start(); err != nil {
		player.Close()
		return Model{}, err
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		player:    player,
		changed:   changed,
		snap:      player.Snapshot(),
		keys:      defaultKeys(),
		help:      help.New(),
		spinner:   sp,
		noColor:   opts.NoColor,
		debriefFn: opts.Debrief,
	}, nil
}

// Snapshot returns the state currently shown.
func (m Model) Snapshot() scenario.Snapshot { return m.snap }

// Init waits for the first timer-driven change.
func (m Model) Init() tea.Cmd {
	return waitForChange(m.changed)
}

// changedMsg signals that the player state moved on its own.
type changedMsg struct{}

type debriefMsg struct {
	text string
	err  error
}

func waitForChange(changed <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-changed
		return changedMsg{}
	}
}

func runDebrief(fn DebriefFunc, snap scenario.Snapshot) tea.Cmd {
	return func() tea.Msg {
		text, err := fn(context.Background(), snap)
		return debriefMsg{text: text, err: err}
	}
}

// Update handles keys, player changes and debrief results.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.help.Width = typed.Width
		return m, nil
	case changedMsg:
		m = m.refresh()
		return m, waitForChange(m.changed)
	case debriefMsg:
		m.debriefing = false
		m.debrief, m.err = typed.text, typed.err
		return m, nil
	case spinner.TickMsg:
		if !m.debriefing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd
	case tea.KeyMsg:
		return m.handleKey(typed)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.player.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if n := len(m.choices()); m.cursor < n-1 {
			m.cursor++
		}
		return m, nil
	case key.Matches(msg, m.keys.Choose):
		return m.choose(m.cursor), nil
	case key.Matches(msg, m.keys.Reset):
		m.player.Reset()
		m.err = m.player.Start()
		m.debrief = ""
		return m.refresh(), nil
	case key.Matches(msg, m.keys.Debrief):
		if m.snap.State != scenario.StateComplete || m.debriefFn == nil || m.debriefing || m.debrief != "" {
			return m, nil
		}
		m.debriefing = true
		m.err = nil
		return m, tea.Batch(m.spinner.Tick, runDebrief(m.debriefFn, m.snap))
	}

	if msg.Type == tea.KeyRunes && len(msg.Runes) == 1 {
		if n, err := strconv.Atoi(string(msg.Runes)); err == nil && n >= 1 && n <= len(m.choices()) {
			return m.choose(n - 1), nil
		}
	}
	return m, nil
}

// choose selects the choice at idx, or continues past feedback.
func (m Model) choose(idx int) Model {
	switch m.snap.State {
	case scenario.StateAwaitingChoice:
		choices := m.choices()
		if idx < 0 || idx >= len(choices) {
			return m
		}
		m.err = m.player.SelectChoice(choices[idx].ID)
	case scenario.StateShowingFeedback:
		m.err = m.player.Advance()
	}
	return m.refresh()
}

func (m Model) refresh() Model {
	prev := m.snap.Decision
	m.snap = m.player.Snapshot()
	if next := m.snap.Decision; next == nil || prev == nil || next.ID != prev.ID {
		m.cursor = 0
	}
	return m
}

func (m Model) choices() []scenario.Choice {
	if m.snap.State != scenario.StateAwaitingChoice || m.snap.Decision == nil {
		return nil
	}
	return m.snap.Decision.Choices
}
