package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/storepulse/reconciler/internal/domain"
)

type PassRunRepo struct {
	db *sql.DB
}

func NewPassRunRepo(db *sql.DB) *PassRunRepo {
	return &PassRunRepo{db: db}
}

func (r *PassRunRepo) Insert(ctx context.Context, run domain.PassRun) error {
	var errText any
	if run.Error != "" {
		errText = run.Error
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pass_runs (id, name, status, notifications, error, started_at, finished_at)
		VALUES (?,?,?,?,?,?,?)`,
		run.ID, run.Name, string(run.Status), run.Notifications, errText,
		run.StartedAt.UTC().Format(timeLayout), run.FinishedAt.UTC().Format(timeLayout),
	)
	return err
}

// Latest returns the most recent runs, newest first.
func (r *PassRunRepo) Latest(ctx context.Context, limit int) ([]domain.PassRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, status, notifications, error, started_at, finished_at
		FROM pass_runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.PassRun
	for rows.Next() {
		var run domain.PassRun
		var status, startedAt, finishedAt string
		var errText sql.NullString
		if err := rows.Scan(&run.ID, &run.Name, &status, &run.Notifications, &errText, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		run.Status = domain.PassStatus(status)
		run.Error = errText.String
		run.StartedAt, _ = time.Parse(timeLayout, startedAt)
		run.FinishedAt, _ = time.Parse(timeLayout, finishedAt)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
