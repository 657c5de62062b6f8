package attempt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/pai-learn/internal/scenario"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed playthrough store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Create(ctx context.Context, p Playthrough) (Playthrough, error) {
	if p.ScenarioID == "" {
		return Playthrough{}, fmt.Errorf("scenario_id is required")
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	p.ID = uuid.NewString()
	if p.StartedAt.IsZero() {
		p.StartedAt = time.Now()
	}
	if p.Selections == nil {
		p.Selections = []scenario.Selection{}
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO playthroughs (id, scenario_id, learner_id, started_at)
		 VALUES ($1::uuid, $2, $3, $4)`,
		p.ID, p.ScenarioID, p.LearnerID, p.StartedAt,
	); err != nil {
		return Playthrough{}, fmt.Errorf("create playthrough: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) Complete(ctx context.Context, id string, selections []scenario.Selection, totalPoints int) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if selections == nil {
		selections = []scenario.Selection{}
	}
	data, err := json.Marshal(selections)
	if err != nil {
		return fmt.Errorf("marshal selections: %w", err)
	}

	cmd, err := s.pool.Exec(ctx,
		`UPDATE playthroughs
		 SET selections = $2::jsonb, total_points = $3, completed_at = now()
		 WHERE id = $1::uuid`,
		id, string(data), totalPoints,
	)
	if err != nil {
		return fmt.Errorf("complete playthrough: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Playthrough, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var p Playthrough
	var selections []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, scenario_id, learner_id, selections, total_points, started_at, completed_at
		 FROM playthroughs
		 WHERE id = $1::uuid`,
		id,
	).Scan(&p.ID, &p.ScenarioID, &p.LearnerID, &selections, &p.TotalPoints, &p.StartedAt, &p.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Playthrough{}, ErrNotFound
		}
		return Playthrough{}, fmt.Errorf("get playthrough: %w", err)
	}
	if err := json.Unmarshal(selections, &p.Selections); err != nil {
		return Playthrough{}, fmt.Errorf("decode selections: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) CountAttempts(ctx context.Context, scenarioID, learnerID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var n int
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM playthroughs WHERE scenario_id = $1 AND learner_id = $2`,
		scenarioID, learnerID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return n, nil
}
