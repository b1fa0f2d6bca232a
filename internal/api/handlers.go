package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/storepulse/reconciler/internal/domain"
	"github.com/storepulse/reconciler/internal/reconciliation"
	"github.com/storepulse/reconciler/internal/repository"
	"github.com/storepulse/reconciler/internal/scheduler"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	salesStore  reconciliation.SalesStore
	reviewStore reconciliation.ReviewStore
	noteRepo    *repository.NotificationRepo
	passRepo    *repository.PassRunRepo
	runner      PassRunner
	log         *logrus.Entry
}

// --- helpers ---

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.WithError(err).Warn("encode error")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func parseTime(s string) *time.Time {
	t, _ := parseTimeOrDate(s)
	return t
}

// parseEndTime treats a bare date as the last instant of that day.
func parseEndTime(s string) *time.Time {
	t, dateOnly := parseTimeOrDate(s)
	if t != nil && dateOnly {
		end := t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		return &end
	}
	return t
}

func parseTimeOrDate(s string) (*time.Time, bool) {
	if s == "" {
		return nil, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, false
	}
	return &t, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

// --- Health ---

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- GetStatus ---

func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cursor, err := h.salesStore.LoadCursor(ctx)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ledger, err := h.salesStore.LoadLedger(ctx)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	reviews, err := h.reviewStore.LoadReviews(ctx)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	passes, err := h.passRepo.Latest(ctx, 10)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	notes, err := h.noteRepo.GetSummary(ctx)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"cursor":        cursor,
		"tracked_apps":  len(ledger),
		"reviewed_apps": len(reviews),
		"recent_passes": passes,
		"notifications": notes,
	})
}

// --- ListApps ---

func (h *Handlers) ListApps(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ledger, err := h.salesStore.LoadLedger(ctx)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	reviews, err := h.reviewStore.LoadReviews(ctx)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	apps := reconciliation.Summaries(ledger, reviews)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"apps":  apps,
		"total": len(apps),
	})
}

// --- GetApp ---

type dayEntry struct {
	Date string `json:"date"`
	domain.SalesRecord
}

func (h *Handlers) GetApp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID := chi.URLParam(r, "appID")

	ledger, err := h.salesStore.LoadLedger(ctx)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	reviews, err := h.reviewStore.LoadReviews(ctx)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	_, inLedger := ledger[appID]
	_, inReviews := reviews[appID]
	if !inLedger && !inReviews {
		h.writeError(w, http.StatusNotFound, "app not found")
		return
	}

	only := domain.Ledger{}
	if inLedger {
		only[appID] = ledger[appID]
	}
	onlyReviews := domain.ReviewCache{}
	if inReviews {
		onlyReviews[appID] = reviews[appID]
	}
	summary := reconciliation.Summaries(only, onlyReviews)[0]

	days := make([]dayEntry, 0, len(ledger[appID]))
	for _, date := range ledger.Dates(appID) {
		days = append(days, dayEntry{Date: date, SalesRecord: ledger[appID][date]})
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"summary": summary,
		"days":    days,
	})
}

// --- ListNotifications ---

func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.NotificationFilter{
		Kind:  q.Get("kind"),
		AppID: q.Get("app_id"),
		From:  parseTime(q.Get("from")),
		To:    parseEndTime(q.Get("to")),
		Page:  parseIntDefault(q.Get("page"), 1),
		Limit: parseIntDefault(q.Get("limit"), 50),
	}

	notes, total, err := h.noteRepo.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if notes == nil {
		notes = []domain.Notification{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"notifications": notes,
		"total":         total,
		"page":          filter.Page,
		"limit":         filter.Limit,
	})
}

// --- GetNotificationSummary ---

func (h *Handlers) GetNotificationSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.noteRepo.GetSummary(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// --- ListPasses ---

func (h *Handlers) ListPasses(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 20)
	runs, err := h.passRepo.Latest(r.Context(), limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []domain.PassRun{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"passes": runs})
}

// --- RunPass ---

func (h *Handlers) RunPass(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		h.writeError(w, http.StatusServiceUnavailable, "scheduler not running")
		return
	}
	name := chi.URLParam(r, "name")

	run, err := h.runner.RunNow(r.Context(), name)
	if errors.Is(err, scheduler.ErrUnknownJob) {
		h.writeError(w, http.StatusNotFound, "unknown pass "+name)
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusOK
	switch run.Status {
	case domain.PassSkipped:
		status = http.StatusConflict
	case domain.PassFailed:
		status = http.StatusBadGateway
	}
	h.writeJSON(w, status, run)
}
