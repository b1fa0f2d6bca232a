package repository

import (
	"context"
	"fmt"

	"github.com/storepulse/reconciler/internal/domain"
)

// LegacySource reads state written by the file-based layout.
type LegacySource interface {
	LoadCursor(ctx context.Context) (string, error)
	LoadLedger(ctx context.Context) (domain.Ledger, error)
	LoadReviews(ctx context.Context) (domain.ReviewCache, error)
}

// ImportResult reports what ImportLegacy copied.
type ImportResult struct {
	Skipped bool   `json:"skipped"`
	Cursor  string `json:"cursor"`
	Apps    int    `json:"apps"`
	Records int    `json:"records"`
	Reviews int    `json:"reviews"`
}

// ImportLegacy copies legacy state into an empty database. A database that
// already holds a ledger row or a non-zero cursor is left untouched.
func ImportLegacy(ctx context.Context, ledgerRepo *LedgerRepo, reviewRepo *ReviewRepo, src LegacySource) (*ImportResult, error) {
	count, err := ledgerRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count ledger: %w", err)
	}
	current, err := ledgerRepo.LoadCursor(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cursor: %w", err)
	}
	if count > 0 || current != domain.ZeroCursor {
		return &ImportResult{Skipped: true, Cursor: current}, nil
	}

	cursor, err := src.LoadCursor(ctx)
	if err != nil {
		return nil, fmt.Errorf("legacy cursor: %w", err)
	}
	ledger, err := src.LoadLedger(ctx)
	if err != nil {
		return nil, fmt.Errorf("legacy ledger: %w", err)
	}
	reviews, err := src.LoadReviews(ctx)
	if err != nil {
		return nil, fmt.Errorf("legacy reviews: %w", err)
	}

	res := &ImportResult{Cursor: cursor, Apps: len(ledger), Reviews: len(reviews)}
	for _, days := range ledger {
		res.Records += len(days)
	}
	if len(ledger) == 0 && cursor == domain.ZeroCursor && len(reviews) == 0 {
		res.Skipped = true
		return res, nil
	}

	if err := ledgerRepo.CommitSales(ctx, ledger, cursor); err != nil {
		return nil, fmt.Errorf("import ledger: %w", err)
	}
	if len(reviews) > 0 {
		if err := reviewRepo.SaveReviews(ctx, reviews); err != nil {
			return nil, fmt.Errorf("import reviews: %w", err)
		}
	}
	return res, nil
}
