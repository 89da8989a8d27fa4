package attempts

import (
	"context"
	"time"

	"github.com/example/visa-rescheduler/internal/db"
	"github.com/example/visa-rescheduler/internal/migrate"
)

type pgStore struct {
	db *db.DB
}

// OpenPostgres connects to databaseURL and applies pending migrations.
func OpenPostgres(ctx context.Context, databaseURL string) (Store, error) {
	d, err := db.Open(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := migrate.Up(ctx, d); err != nil {
		d.Close()
		return nil, err
	}
	return &pgStore{db: d}, nil
}

func (s *pgStore) Record(ctx context.Context, a Attempt) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	err := s.db.Exec(ctx,
		`INSERT INTO attempts(run_id, outcome, requests, primary_date, detail, created_at) VALUES($1,$2,$3,$4,$5,$6)`,
		a.RunID, string(a.Outcome), a.Requests, a.PrimaryDate, a.Detail, a.CreatedAt,
	)
	return db.WrapNotFound(err)
}

func (s *pgStore) Recent(ctx context.Context, limit int) ([]Attempt, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, run_id, outcome, requests, primary_date, detail, created_at
		 FROM attempts ORDER BY id DESC LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, db.WrapNotFound(err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var (
			a       Attempt
			outcome string
		)
		if err := rows.Scan(&a.ID, &a.RunID, &outcome, &a.Requests, &a.PrimaryDate, &a.Detail, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Outcome = Outcome(outcome)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *pgStore) Close() error {
	s.db.Close()
	return nil
}
