package attempt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventType names a learning event stored in learning_events.event_type.
type EventType string

const (
	EventScenarioStarted   EventType = "scenario_started"
	EventChoiceSelected    EventType = "choice_selected"
	EventScenarioCompleted EventType = "scenario_completed"
	EventQuizSubmitted     EventType = "quiz_submitted"
	EventQuizSubmitFailed  EventType = "quiz_submit_failed"
)

var errNoEventType = errors.New("event type is required")

// Event is one learning event. SubjectID is the scenario or quiz id.
type Event struct {
	Type      EventType
	LearnerID string
	SubjectID string
	Data      map[string]any
	At        time.Time
}

// stamped checks the event and fills in At.
func (e Event) stamped() (Event, error) {
	if e.Type == "" {
		return e, errNoEventType
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	return e, nil
}

type EventLogger interface {
	LogEvent(ctx context.Context, event Event) error
}

// NopEventLogger drops events. Used when no database is configured.
type NopEventLogger struct{}

func (NopEventLogger) LogEvent(context.Context, Event) error { return nil }

// MemoryEventLogger keeps events in memory.
type MemoryEventLogger struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryEventLogger() *MemoryEventLogger {
	return &MemoryEventLogger{}
}

func (l *MemoryEventLogger) LogEvent(_ context.Context, event Event) error {
	event, err := event.stamped()
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

// Events returns a copy of everything logged so far.
func (l *MemoryEventLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func (l *MemoryEventLogger) OfType(t EventType) []Event {
	var out []Event
	for _, e := range l.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// PostgresEventLogger writes events to learning_events.
type PostgresEventLogger struct {
	pool *pgxpool.Pool
}

func NewPostgresEventLogger(pool *pgxpool.Pool) *PostgresEventLogger {
	return &PostgresEventLogger{pool: pool}
}

func (l *PostgresEventLogger) LogEvent(ctx context.Context, event Event) error {
	if l.pool == nil {
		return fmt.Errorf("log %s: no database pool", event.Type)
	}
	event, err := event.stamped()
	if err != nil {
		return err
	}
	data := event.Data
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s data: %w", event.Type, err)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	if _, err := l.pool.Exec(ctx,
		`INSERT INTO learning_events (event_type, learner_id, subject_id, data, created_at)
		 VALUES ($1, $2, $3, $4::jsonb, $5)`,
		string(event.Type), event.LearnerID, event.SubjectID, string(raw), event.At,
	); err != nil {
		return fmt.Errorf("insert %s: %w", event.Type, err)
	}
	slog.Debug("learning event stored", "type", event.Type, "subject_id", event.SubjectID)
	return nil
}
