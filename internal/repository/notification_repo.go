package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/storepulse/reconciler/internal/domain"
)

type NotificationRepo struct {
	db *sql.DB
}

func NewNotificationRepo(db *sql.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

func (r *NotificationRepo) BulkInsert(ctx context.Context, notes []domain.Notification) (int, error) {
	if len(notes) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO notifications
		(id, kind, app_id, message, delivered, created_at)
		VALUES (?,?,?,?,?,?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range notes {
		n := &notes[i]
		res, err := stmt.ExecContext(ctx,
			n.ID, string(n.Kind), n.AppID, n.Message, n.Delivered,
			n.CreatedAt.UTC().Format(timeLayout),
		)
		if err != nil {
			return inserted, fmt.Errorf("insert %d: %w", i, err)
		}
		ra, _ := res.RowsAffected()
		inserted += int(ra)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

type NotificationFilter struct {
	Kind  string
	AppID string
	From  *time.Time
	To    *time.Time
	Page  int
	Limit int
}

func (r *NotificationRepo) List(ctx context.Context, f NotificationFilter) ([]domain.Notification, int, error) {
	where, args := buildNotificationWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notifications"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	offset := (f.Page - 1) * f.Limit

	q := "SELECT id, kind, app_id, message, delivered, created_at FROM notifications" +
		where + " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	notes, err := scanNotifications(rows)
	return notes, total, err
}

type NotificationSummary struct {
	TotalCount  int            `json:"total_count"`
	Undelivered int            `json:"undelivered"`
	ByKind      map[string]int `json:"by_kind"`
}

func (r *NotificationRepo) GetSummary(ctx context.Context) (*NotificationSummary, error) {
	s := &NotificationSummary{ByKind: make(map[string]int)}

	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(CASE WHEN delivered = 0 THEN 1 ELSE 0 END),0) FROM notifications",
	).Scan(&s.TotalCount, &s.Undelivered); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, "SELECT kind, COUNT(*) FROM notifications GROUP BY kind")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var v int
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		s.ByKind[k] = v
	}
	return s, rows.Err()
}

// --- helpers ---

func buildNotificationWhere(f NotificationFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, f.Kind)
	}
	if f.AppID != "" {
		clauses = append(clauses, "app_id = ?")
		args = append(args, f.AppID)
	}
	if f.From != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, f.From.UTC().Format(timeLayout))
	}
	if f.To != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, f.To.UTC().Format(timeLayout))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanNotifications(rows *sql.Rows) ([]domain.Notification, error) {
	var notes []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var kind, createdAt string

		if err := rows.Scan(&n.ID, &kind, &n.AppID, &n.Message, &n.Delivered, &createdAt); err != nil {
			return nil, err
		}

		n.Kind = domain.NotificationKind(kind)
		n.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
