package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Source. Tables are created by
// database.Migrate.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store on an open pool.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) GetScenario(ctx context.Context, id string) (Scenario, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var sc Scenario
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, description, avatar_url, background_url, max_attempts
		 FROM scenarios
		 WHERE id = $1`,
		id,
	).Scan(&sc.ID, &sc.Title, &sc.Description, &sc.AvatarURL, &sc.BackgroundURL, &sc.MaxAttempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Scenario{}, ErrNotFound
		}
		return Scenario{}, fmt.Errorf("query scenario: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, level, title, description
		 FROM scenario_decisions
		 WHERE scenario_id = $1
		 ORDER BY position ASC`,
		id,
	)
	if err != nil {
		return Scenario{}, fmt.Errorf("query decisions: %w", err)
	}
	positions := make(map[string]int)
	for rows.Next() {
		var d Decision
		if err := rows.Scan(&d.ID, &d.Level, &d.Title, &d.Description); err != nil {
			rows.Close()
			return Scenario{}, fmt.Errorf("scan decision: %w", err)
		}
		positions[d.ID] = len(sc.Decisions)
		sc.Decisions = append(sc.Decisions, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Scenario{}, fmt.Errorf("iterate decisions: %w", err)
	}

	rows, err = s.pool.Query(ctx,
		`SELECT decision_id, id, text, branch_type, feedback, points, next_decision_id
		 FROM scenario_choices
		 WHERE scenario_id = $1
		 ORDER BY decision_id, position ASC`,
		id,
	)
	if err != nil {
		return Scenario{}, fmt.Errorf("query choices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var decisionID, branch string
		var next *string
		var c Choice
		if err := rows.Scan(&decisionID, &c.ID, &c.Text, &branch, &c.Feedback, &c.Points, &next); err != nil {
			return Scenario{}, fmt.Errorf("scan choice: %w", err)
		}
		c.BranchType = ParseBranchType(branch)
		if next != nil {
			c.NextDecisionID = *next
		}
		pos, ok := positions[decisionID]
		if !ok {
			continue
		}
		sc.Decisions[pos].Choices = append(sc.Decisions[pos].Choices, c)
	}
	if err := rows.Err(); err != nil {
		return Scenario{}, fmt.Errorf("iterate choices: %w", err)
	}

	return sc, nil
}

// SaveScenario replaces the stored scenario with sc.
func (s *PostgresStore) SaveScenario(ctx context.Context, sc Scenario) error {
	if sc.ID == "" {
		return fmt.Errorf("scenario id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM scenarios WHERE id = $1`, sc.ID); err != nil {
		return fmt.Errorf("delete scenario: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO scenarios (id, title, description, avatar_url, background_url, max_attempts)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sc.ID, sc.Title, sc.Description, sc.AvatarURL, sc.BackgroundURL, sc.MaxAttempts,
	); err != nil {
		return fmt.Errorf("insert scenario: %w", err)
	}

	batch := &pgx.Batch{}
	for i, d := range sc.Decisions {
		batch.Queue(
			`INSERT INTO scenario_decisions (scenario_id, id, position, level, title, description)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (scenario_id, id) DO NOTHING`,
			sc.ID, d.ID, i, d.Level, d.Title, d.Description,
		)
		for j, c := range d.Choices {
			batch.Queue(
				`INSERT INTO scenario_choices
				   (scenario_id, decision_id, id, position, text, branch_type, feedback, points, next_decision_id)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				 ON CONFLICT (scenario_id, decision_id, id) DO NOTHING`,
				sc.ID, d.ID, c.ID, j, c.Text, string(c.Branch()), c.Feedback, c.Points, nullIfEmpty(c.NextDecisionID),
			)
		}
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert decisions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit scenario: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
