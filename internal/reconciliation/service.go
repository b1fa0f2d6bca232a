package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/storepulse/reconciler/internal/config"
	"github.com/storepulse/reconciler/internal/domain"
	"github.com/storepulse/reconciler/internal/notify"
	"github.com/storepulse/reconciler/internal/snapshot"
)

// SalesGateway reports which dates changed since a cursor and the per-app
// totals of one date.
type SalesGateway interface {
	ChangedDates(ctx context.Context, cursor string) ([]string, string, error)
	SalesForDate(ctx context.Context, date, startID string) (map[string]domain.SalesRecord, error)
}

// ReviewGateway returns an app's review aggregate. ok is false when the
// upstream answered but had nothing usable.
type ReviewGateway interface {
	Reviews(ctx context.Context, appID string) (domain.ReviewAggregate, bool, error)
}

// SalesStore persists the ledger and the changed-dates cursor. CommitSales
// must write both or neither.
type SalesStore interface {
	LoadLedger(ctx context.Context) (domain.Ledger, error)
	LoadCursor(ctx context.Context) (string, error)
	CommitSales(ctx context.Context, ledger domain.Ledger, cursor string) error
}

type ReviewStore interface {
	LoadReviews(ctx context.Context) (domain.ReviewCache, error)
	SaveReviews(ctx context.Context, cache domain.ReviewCache) error
}

// NotificationRecorder keeps the history of emitted notifications.
type NotificationRecorder interface {
	BulkInsert(ctx context.Context, notes []domain.Notification) (int, error)
}

// Dependencies wires a Service. History and Snapshots are optional.
type Dependencies struct {
	Sales       SalesGateway
	Reviews     ReviewGateway
	SalesStore  SalesStore
	ReviewStore ReviewStore
	Notifier    notify.Notifier
	History     NotificationRecorder
	Snapshots   snapshot.Sink
	Now         func() time.Time
}

// Service runs sales and review reconciliation passes.
type Service struct {
	sales       SalesGateway
	reviews     ReviewGateway
	salesStore  SalesStore
	reviewStore ReviewStore
	notifier    notify.Notifier
	history     NotificationRecorder
	snapshots   snapshot.Sink
	now         func() time.Time
	log         *logrus.Entry
}

// NewService creates a new reconciliation service.
func NewService(deps Dependencies) (*Service, error) {
	switch {
	case deps.Sales == nil:
		return nil, errors.New("reconciliation: sales gateway is required")
	case deps.Reviews == nil:
		return nil, errors.New("reconciliation: review gateway is required")
	case deps.SalesStore == nil:
		return nil, errors.New("reconciliation: sales store is required")
	case deps.ReviewStore == nil:
		return nil, errors.New("reconciliation: review store is required")
	case deps.Notifier == nil:
		return nil, errors.New("reconciliation: notifier is required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		sales:       deps.Sales,
		reviews:     deps.Reviews,
		salesStore:  deps.SalesStore,
		reviewStore: deps.ReviewStore,
		notifier:    deps.Notifier,
		history:     deps.History,
		snapshots:   deps.Snapshots,
		now:         now,
		log:         config.Logger("reconciliation"),
	}, nil
}

// SalesResult summarises one sales pass.
type SalesResult struct {
	PreviousCursor string                `json:"previous_cursor"`
	Cursor         string                `json:"cursor"`
	Dates          []string              `json:"dates"`
	RecordsWritten int                   `json:"records_written"`
	Notifications  []domain.Notification `json:"notifications"`
}

// Changed reports whether the upstream advanced the cursor.
func (r *SalesResult) Changed() bool {
	return r.Cursor != r.PreviousCursor
}

// ReconcileSales pulls every date changed since the stored cursor, merges it
// into the ledger and notifies for each app whose unit total moved. Any
// upstream failure aborts the pass before anything is persisted.
func (s *Service) ReconcileSales(ctx context.Context) (*SalesResult, error) {
	cursor, err := s.salesStore.LoadCursor(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cursor: %w", err)
	}

	dates, next, err := s.sales.ChangedDates(ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("changed dates: %w", err)
	}
	result := &SalesResult{PreviousCursor: cursor, Cursor: next, Dates: dates}
	if next == cursor {
		s.log.WithField("cursor", cursor).Info("No new sales data")
		result.Dates = nil
		return result, nil
	}

	ledger, err := s.salesStore.LoadLedger(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if ledger == nil {
		ledger = make(domain.Ledger)
	}

	initial := ComputeMetrics(ledger)
	for _, date := range dates {
		fetched, err := s.sales.SalesForDate(ctx, date, domain.ZeroCursor)
		if err != nil {
			return nil, fmt.Errorf("sales for %s: %w", date, err)
		}
		result.RecordsWritten += MergeDay(ledger, date, fetched)
	}
	deltas := SalesDeltas(initial, ComputeMetrics(ledger))

	if err := s.salesStore.CommitSales(ctx, ledger, next); err != nil {
		return nil, fmt.Errorf("commit sales: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"previous_cursor": cursor,
		"cursor":          next,
		"dates":           len(dates),
		"records":         result.RecordsWritten,
		"changed_apps":    len(deltas),
	}).Info("Sales pass committed")

	notes := make([]domain.Notification, 0, len(deltas))
	for _, d := range deltas {
		notes = append(notes, s.newNotification(domain.NotificationSales, d.AppID, d.Message()))
	}
	result.Notifications = s.deliver(ctx, notes)

	s.exportSnapshot(ctx)
	return result, nil
}

// ReviewResult summarises one review pass.
type ReviewResult struct {
	Checked       int                   `json:"checked"`
	Skipped       int                   `json:"skipped"`
	Notifications []domain.Notification `json:"notifications"`
}

// ReconcileReviews refreshes the review cache for appIDs and notifies when an
// app's total review count differs from the cached one. Apps without a usable
// response, or without any reviews, keep their cached entry.
func (s *Service) ReconcileReviews(ctx context.Context, appIDs []string) (*ReviewResult, error) {
	cache, err := s.reviewStore.LoadReviews(ctx)
	if err != nil {
		return nil, fmt.Errorf("load reviews: %w", err)
	}
	if cache == nil {
		cache = make(domain.ReviewCache)
	}

	result := &ReviewResult{}
	var changes []ReviewChange
	for _, appID := range appIDs {
		agg, ok, err := s.reviews.Reviews(ctx, appID)
		if err != nil {
			return nil, fmt.Errorf("reviews for %s: %w", appID, err)
		}
		score, hasScore := agg.Score()
		if !ok || !hasScore {
			result.Skipped++
			continue
		}
		result.Checked++

		prev, known := cache[appID]
		if !known || prev.Total != agg.Total {
			changes = append(changes, ReviewChange{AppID: appID, Aggregate: agg, Score: score})
		}
		cache[appID] = agg
	}

	if err := s.reviewStore.SaveReviews(ctx, cache); err != nil {
		return nil, fmt.Errorf("save reviews: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"apps":    len(appIDs),
		"checked": result.Checked,
		"skipped": result.Skipped,
		"changed": len(changes),
	}).Info("Review pass committed")

	notes := make([]domain.Notification, 0, len(changes))
	for _, c := range changes {
		notes = append(notes, s.newNotification(domain.NotificationReviews, c.AppID, c.Message()))
	}
	result.Notifications = s.deliver(ctx, notes)

	s.exportSnapshot(ctx)
	return result, nil
}

// TrackedAppIDs returns the apps present in the persisted ledger, sorted.
func (s *Service) TrackedAppIDs(ctx context.Context) ([]string, error) {
	ledger, err := s.salesStore.LoadLedger(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return ledger.AppIDs(), nil
}

// RunReviewPass reconciles reviews for every tracked app.
func (s *Service) RunReviewPass(ctx context.Context) (*ReviewResult, error) {
	appIDs, err := s.TrackedAppIDs(ctx)
	if err != nil {
		return nil, err
	}
	return s.ReconcileReviews(ctx, appIDs)
}

// Snapshot builds the current summary from persisted state.
func (s *Service) Snapshot(ctx context.Context) (snapshot.Snapshot, error) {
	ledger, err := s.salesStore.LoadLedger(ctx)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("load ledger: %w", err)
	}
	cursor, err := s.salesStore.LoadCursor(ctx)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("load cursor: %w", err)
	}
	reviews, err := s.reviewStore.LoadReviews(ctx)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("load reviews: %w", err)
	}
	return snapshot.Snapshot{
		GeneratedAt: s.now().UTC(),
		Cursor:      cursor,
		Apps:        Summaries(ledger, reviews),
	}, nil
}

func (s *Service) newNotification(kind domain.NotificationKind, appID, message string) domain.Notification {
	return domain.Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		AppID:     appID,
		Message:   message,
		CreatedAt: s.now().UTC(),
	}
}

// deliver publishes each notification once. Failures are logged and recorded
// as undelivered; they never fail the pass.
func (s *Service) deliver(ctx context.Context, notes []domain.Notification) []domain.Notification {
	if len(notes) == 0 {
		return notes
	}
	for i := range notes {
		if err := s.notifier.Publish(ctx, notes[i].Message); err != nil {
			config.LogError(s.log, "deliver", "publish notification",
				logrus.Fields{"app_id": notes[i].AppID, "kind": notes[i].Kind}, err)
			continue
		}
		notes[i].Delivered = true
	}
	if s.history != nil {
		if _, err := s.history.BulkInsert(ctx, notes); err != nil {
			config.LogError(s.log, "deliver", "record notifications", len(notes), err)
		}
	}
	return notes
}

func (s *Service) exportSnapshot(ctx context.Context) {
	if s.snapshots == nil {
		return
	}
	snap, err := s.Snapshot(ctx)
	if err == nil {
		err = s.snapshots.Export(ctx, snap)
	}
	if err != nil {
		config.LogError(s.log, "exportSnapshot", "export snapshot", nil, err)
	}
}
