package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/storepulse/reconciler/internal/domain"
)

type ReviewRepo struct {
	db *sql.DB
}

func NewReviewRepo(db *sql.DB) *ReviewRepo {
	return &ReviewRepo{db: db}
}

// LoadReviews returns the cached aggregates; no rows is an empty cache.
func (r *ReviewRepo) LoadReviews(ctx context.Context) (domain.ReviewCache, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT app_id, total, positive, negative FROM review_cache")
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	cache := make(domain.ReviewCache)
	for rows.Next() {
		var appID string
		var agg domain.ReviewAggregate
		if err := rows.Scan(&appID, &agg.Total, &agg.Positive, &agg.Negative); err != nil {
			continue
		}
		cache[appID] = agg
	}
	return cache, rows.Err()
}

// Get returns one app's cached aggregate.
func (r *ReviewRepo) Get(ctx context.Context, appID string) (domain.ReviewAggregate, bool, error) {
	var agg domain.ReviewAggregate
	err := r.db.QueryRowContext(ctx,
		"SELECT total, positive, negative FROM review_cache WHERE app_id = ?", appID,
	).Scan(&agg.Total, &agg.Positive, &agg.Negative)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ReviewAggregate{}, false, nil
	}
	if err != nil {
		return domain.ReviewAggregate{}, false, err
	}
	return agg, true, nil
}

// SaveReviews upserts every entry of cache in one transaction.
func (r *ReviewRepo) SaveReviews(ctx context.Context, cache domain.ReviewCache) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO review_cache (app_id, total, positive, negative, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(app_id) DO UPDATE SET
			total = excluded.total,
			positive = excluded.positive,
			negative = excluded.negative,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for appID, agg := range cache {
		if _, err := stmt.ExecContext(ctx, appID, agg.Total, agg.Positive, agg.Negative, now); err != nil {
			return fmt.Errorf("upsert %s: %w", appID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
