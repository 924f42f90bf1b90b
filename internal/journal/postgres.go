package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// pgRepo implements Repo for PostgreSQL.
type pgRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPostgresRepo connects with sqlx over lib/pq.
func NewPostgresRepo(dsn string, timeout time.Duration) (Repo, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect journal db: %w", err)
	}
	return &pgRepo{db: db, timeout: timeout}, nil
}

// NewPostgresRepoWithDB wraps an existing connection, used by tests.
func NewPostgresRepoWithDB(db *sqlx.DB, timeout time.Duration) Repo {
	return &pgRepo{db: db, timeout: timeout}
}

func (r *pgRepo) Record(ctx context.Context, e Entry) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rationaleJSON, err := json.Marshal(e.Rationale)
	if err != nil {
		return fmt.Errorf("marshal rationale: %w", err)
	}

	query := `
		INSERT INTO decision_runs (run_id, campaign, contract, action, launch_hour_utc, verdict, risk_score, rationale)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err = r.db.QueryRowxContext(ctx, query,
		e.RunID, e.Campaign, e.Contract, e.Action, e.LaunchHourUTC,
		e.Verdict, e.RiskScore, rationaleJSON).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate run %s: %w", e.RunID, err)
		}
		return fmt.Errorf("insert decision run: %w", err)
	}
	return nil
}

func (r *pgRepo) Latest(ctx context.Context, n int) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, run_id, campaign, contract, action, launch_hour_utc, verdict, risk_score, rationale, created_at
		FROM decision_runs
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.QueryxContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("query decision runs: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e             Entry
			rationaleJSON []byte
		)
		err := rows.Scan(&e.ID, &e.RunID, &e.Campaign, &e.Contract, &e.Action,
			&e.LaunchHourUTC, &e.Verdict, &e.RiskScore, &rationaleJSON, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan decision run: %w", err)
		}
		if len(rationaleJSON) > 0 {
			if err := json.Unmarshal(rationaleJSON, &e.Rationale); err != nil {
				return nil, fmt.Errorf("unmarshal rationale: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
