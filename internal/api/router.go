package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/storepulse/reconciler/internal/config"
	"github.com/storepulse/reconciler/internal/domain"
	"github.com/storepulse/reconciler/internal/reconciliation"
	"github.com/storepulse/reconciler/internal/repository"
)

// PassRunner triggers a named pass on demand.
type PassRunner interface {
	RunNow(ctx context.Context, name string) (domain.PassRun, error)
}

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(
	salesStore reconciliation.SalesStore,
	reviewStore reconciliation.ReviewStore,
	noteRepo *repository.NotificationRepo,
	passRepo *repository.PassRunRepo,
	runner PassRunner,
) http.Handler {
	h := &Handlers{
		salesStore:  salesStore,
		reviewStore: reviewStore,
		noteRepo:    noteRepo,
		passRepo:    passRepo,
		runner:      runner,
		log:         config.Logger("api"),
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Get("/healthz", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.GetStatus)

		// Apps.
		r.Get("/apps", h.ListApps)
		r.Get("/apps/{appID}", h.GetApp)

		// Notifications.
		r.Get("/notifications", h.ListNotifications)
		r.Get("/notifications/summary", h.GetNotificationSummary)

		// Passes.
		r.Get("/passes", h.ListPasses)
		r.Post("/passes/{name}", h.RunPass)
	})

	return r
}
