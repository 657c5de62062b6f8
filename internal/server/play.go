package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-learn/internal/attempt"
	"github.com/p-n-ai/pai-learn/internal/scenario"
)

const (
	playReadLimit    = 4 << 10
	anonymousLearner = "anonymous"
)

// Client message types on the play socket.
const (
	msgStart    = "start"
	msgSelect   = "select"
	msgAdvance  = "advance"
	msgReset    = "reset"
	msgSnapshot = "snapshot"
	msgDebrief  = "debrief"
)

// Server message types on the play socket.
const (
	msgScenario = "scenario"
	msgError    = "error"
)

var (
	errUnknownMessage     = errors.New("unknown message type")
	errDebriefUnavailable = errors.New("debrief is not configured")
)

type clientMessage struct {
	Type     string `json:"type"`
	ChoiceID string `json:"choiceId,omitempty"`
}

type scenarioInfo struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	AvatarURL     string `json:"avatarUrl,omitempty"`
	BackgroundURL string `json:"backgroundUrl,omitempty"`
	PlaythroughID string `json:"playthroughId"`
}

type serverMessage struct {
	Type     string             `json:"type"`
	Scenario *scenarioInfo      `json:"scenario,omitempty"`
	Snapshot *scenario.Snapshot `json:"snapshot,omitempty"`
	Debrief  string             `json:"debrief,omitempty"`
	Error    *errorBody         `json:"error,omitempty"`
}

// handlePlay runs one scenario player per WebSocket connection. Every state
// change is pushed to the client as a snapshot message.
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.loadScenario(w, r)
	if !ok {
		return
	}
	learner := r.URL.Query().Get("learner")
	if learner == "" {
		learner = anonymousLearner
	}

	pt, err := s.deps.Recorder.Start(r.Context(), sc, learner)
	if err != nil {
		if errors.Is(err, attempt.ErrAttemptsExhausted) {
			writeError(w, http.StatusForbidden, "ATTEMPTS_EXHAUSTED", "You have used all attempts for this scenario.")
			return
		}
		slog.Error("failed to start playthrough", "scenario_id", sc.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "PLAY_UNAVAILABLE", "Failed to start scenario. Please try again.")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.deps.OriginPatterns,
	})
	if err != nil {
		slog.Warn("websocket handshake failed", "scenario_id", sc.ID, "error", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(playReadLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := make(chan serverMessage, 8)
	send := func(m serverMessage) {
		select {
		case out <- m:
		case <-ctx.Done():
		}
	}

	player := scenario.NewPlayer(sc,
		scenario.WithFeedbackDelay(s.deps.FeedbackDelay),
		scenario.WithObserver(s.deps.Recorder.Observer(ctx, pt)),
		scenario.WithObserver(func(snap scenario.Snapshot) {
			s.countTransition(snap.State)
			send(serverMessage{Type: msgSnapshot, Snapshot: &snap})
		}),
	)
	defer player.Close()

	if m := s.deps.Metrics; m != nil {
		m.ActivePlayers.Inc()
		defer m.ActivePlayers.Dec()
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-out:
				if err := wsjson.Write(ctx, conn, m); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	slog.Info("scenario play started",
		"scenario_id", sc.ID,
		"playthrough_id", pt.ID,
		"learner_id", learner,
	)
	send(serverMessage{Type: msgScenario, Scenario: &scenarioInfo{
		ID:            sc.ID,
		Title:         sc.Title,
		Description:   sc.Description,
		AvatarURL:     sc.AvatarURL,
		BackgroundURL: sc.BackgroundURL,
		PlaythroughID: pt.ID,
	}})
	initial := player.Snapshot()
	send(serverMessage{Type: msgSnapshot, Snapshot: &initial})

	for {
		var msg clientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if ctx.Err() == nil {
					slog.Debug("play socket read ended", "playthrough_id", pt.ID, "error", err)
				}
			}
			return
		}
		if err := s.dispatch(ctx, player, msg, send); err != nil {
			send(serverMessage{Type: msgError, Error: &errorBody{
				Code:    playErrorCode(err),
				Message: err.Error(),
			}})
		}
	}
}

func (s *Server) dispatch(ctx context.Context, player *scenario.Player, msg clientMessage, send func(serverMessage)) error {
	switch msg.Type {
	case msgStart:
		return player.Start()
	case msgSelect:
		return player.SelectChoice(msg.ChoiceID)
	case msgAdvance:
		return player.Advance()
	case msgReset:
		player.Reset()
		return nil
	case msgSnapshot:
		snap := player.Snapshot()
		send(serverMessage{Type: msgSnapshot, Snapshot: &snap})
		return nil
	case msgDebrief:
		if s.deps.Debriefer == nil {
			return errDebriefUnavailable
		}
		text, err := s.deps.Debriefer.Debrief(ctx, player.Scenario(), player.Snapshot())
		if err != nil {
			return err
		}
		send(serverMessage{Type: msgDebrief, Debrief: text})
		return nil
	default:
		return errUnknownMessage
	}
}

func playErrorCode(err error) string {
	switch {
	case errors.Is(err, scenario.ErrInvalidState):
		return "INVALID_STATE"
	case errors.Is(err, scenario.ErrUnknownChoice):
		return "UNKNOWN_CHOICE"
	case errors.Is(err, scenario.ErrNoEntryDecision):
		return "NO_ENTRY_DECISION"
	case errors.Is(err, scenario.ErrPlayerClosed):
		return "PLAYER_CLOSED"
	case errors.Is(err, errUnknownMessage):
		return "UNKNOWN_MESSAGE"
	case errors.Is(err, errDebriefUnavailable):
		return "DEBRIEF_UNAVAILABLE"
	default:
		return "DEBRIEF_FAILED"
	}
}

func (s *Server) countTransition(state scenario.State) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.ScenarioTransitions.WithLabelValues(state.String()).Inc()
	}
}
