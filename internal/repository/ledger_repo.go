package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/storepulse/reconciler/internal/config"
	"github.com/storepulse/reconciler/internal/domain"
)

const cursorKey = "changed_dates_cursor"

// LedgerRepo persists the sales ledger and the changed-dates cursor.
type LedgerRepo struct {
	db *sql.DB
}

func NewLedgerRepo(db *sql.DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

// LoadLedger returns every stored record. No rows is an empty ledger; rows
// that fail to scan are skipped.
func (r *LedgerRepo) LoadLedger(ctx context.Context) (domain.Ledger, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT app_id, date, gross_units, net_units, net_sales FROM sales_ledger",
	)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	ledger := make(domain.Ledger)
	for rows.Next() {
		var appID, date string
		var gross, net int64
		var netSales float64
		if err := rows.Scan(&appID, &date, &gross, &net, &netSales); err != nil {
			config.Logger("repository").Warnf("skipping unreadable ledger row: %v", err)
			continue
		}
		rec, err := domain.NewSalesRecord(appID, gross, net, netSales)
		if err != nil {
			config.Logger("repository").Warnf("skipping invalid ledger row: %v", err)
			continue
		}
		if ledger[appID] == nil {
			ledger[appID] = make(domain.DailySales)
		}
		ledger[appID][date] = rec
	}
	return ledger, rows.Err()
}

// LoadAppSales returns the per-date records of one app.
func (r *LedgerRepo) LoadAppSales(ctx context.Context, appID string) (domain.DailySales, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT date, gross_units, net_units, net_sales FROM sales_ledger WHERE app_id = ? ORDER BY date",
		appID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	days := make(domain.DailySales)
	for rows.Next() {
		rec := domain.SalesRecord{AppID: appID}
		var date string
		if err := rows.Scan(&date, &rec.GrossUnits, &rec.NetUnits, &rec.NetSales); err != nil {
			return nil, err
		}
		days[date] = rec
	}
	return days, rows.Err()
}

// LoadCursor returns the stored cursor, or the zero cursor when none exists.
func (r *LedgerRepo) LoadCursor(ctx context.Context) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM kv_state WHERE key = ?", cursorKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ZeroCursor, nil
	}
	if err != nil {
		return "", fmt.Errorf("query cursor: %w", err)
	}
	if strings.TrimSpace(value) == "" {
		return domain.ZeroCursor, nil
	}
	return strings.TrimSpace(value), nil
}

// CommitSales writes the ledger and the new cursor in one transaction.
func (r *LedgerRepo) CommitSales(ctx context.Context, ledger domain.Ledger, cursor string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sales_ledger (app_id, date, gross_units, net_units, net_sales, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(app_id, date) DO UPDATE SET
			gross_units = excluded.gross_units,
			net_units = excluded.net_units,
			net_sales = excluded.net_sales,
			updated_at = excluded.updated_at
		WHERE sales_ledger.gross_units != excluded.gross_units
			OR sales_ledger.net_units != excluded.net_units
			OR sales_ledger.net_sales != excluded.net_sales
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for appID, days := range ledger {
		for date, rec := range days {
			if _, err := stmt.ExecContext(ctx, appID, date, rec.GrossUnits, rec.NetUnits, rec.NetSales, now); err != nil {
				return fmt.Errorf("upsert %s/%s: %w", appID, date, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO kv_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, cursorKey, cursor, now); err != nil {
		return fmt.Errorf("upsert cursor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Count returns the number of stored (app, date) records.
func (r *LedgerRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sales_ledger").Scan(&count)
	return count, err
}
