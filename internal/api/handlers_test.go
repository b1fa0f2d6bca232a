package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/storepulse/reconciler/internal/domain"
	"github.com/storepulse/reconciler/internal/repository"
	"github.com/storepulse/reconciler/internal/scheduler"
)

type fakeRunner struct {
	status domain.PassStatus
	names  []string
}

func (f *fakeRunner) RunNow(_ context.Context, name string) (domain.PassRun, error) {
	if name != "sales" && name != "reviews" {
		return domain.PassRun{}, scheduler.ErrUnknownJob
	}
	f.names = append(f.names, name)
	return domain.PassRun{ID: "run-1", Name: name, Status: f.status}, nil
}

func newTestServer(t *testing.T, runner PassRunner) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	db, err := repository.InitDB(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ledgerRepo := repository.NewLedgerRepo(db)
	reviewRepo := repository.NewReviewRepo(db)
	noteRepo := repository.NewNotificationRepo(db)
	passRepo := repository.NewPassRunRepo(db)

	ledger := domain.Ledger{"100": domain.DailySales{
		"2024-01-02": {AppID: "100", GrossUnits: 3, NetUnits: 3, NetSales: 30},
		"2024-01-01": {AppID: "100", GrossUnits: 2, NetUnits: 2, NetSales: 10},
	}}
	if err := ledgerRepo.CommitSales(ctx, ledger, "123"); err != nil {
		t.Fatalf("CommitSales: %v", err)
	}
	if err := reviewRepo.SaveReviews(ctx, domain.ReviewCache{"100": {Total: 4, Positive: 3, Negative: 1}}); err != nil {
		t.Fatalf("SaveReviews: %v", err)
	}
	now := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	if _, err := noteRepo.BulkInsert(ctx, []domain.Notification{
		{ID: "n1", Kind: domain.NotificationSales, AppID: "100", Message: "100\nUnits: 5 (+5)\nProfit: $28", Delivered: true, CreatedAt: now},
		{ID: "n2", Kind: domain.NotificationReviews, AppID: "100", Message: "100\nTotal Reviews: 4\nReview Score: 75.0", CreatedAt: now.Add(time.Minute)},
	}); err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}
	if err := passRepo.Insert(ctx, domain.PassRun{ID: "p1", Name: "sales", Status: domain.PassSucceeded, StartedAt: now, FinishedAt: now}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	srv := httptest.NewServer(NewRouter(ledgerRepo, reviewRepo, noteRepo, passRepo, runner))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, wantStatus int, out any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
}

func TestHealthAndStatus(t *testing.T) {
	srv := newTestServer(t, nil)
	getJSON(t, srv.URL+"/healthz", http.StatusOK, nil)

	var status struct {
		Cursor        string           `json:"cursor"`
		TrackedApps   int              `json:"tracked_apps"`
		RecentPasses  []domain.PassRun `json:"recent_passes"`
		Notifications struct {
			TotalCount  int `json:"total_count"`
			Undelivered int `json:"undelivered"`
		} `json:"notifications"`
	}
	getJSON(t, srv.URL+"/api/v1/status", http.StatusOK, &status)
	if status.Cursor != "123" || status.TrackedApps != 1 || len(status.RecentPasses) != 1 {
		t.Fatalf("status = %+v", status)
	}
	if status.Notifications.TotalCount != 2 || status.Notifications.Undelivered != 1 {
		t.Fatalf("notification summary = %+v", status.Notifications)
	}
}

func TestListAndGetApp(t *testing.T) {
	srv := newTestServer(t, nil)

	var list struct {
		Apps []struct {
			AppID          string `json:"app_id"`
			TotalUnits     int64  `json:"total_units"`
			RealizedProfit int64  `json:"realized_profit_usd"`
		} `json:"apps"`
	}
	getJSON(t, srv.URL+"/api/v1/apps", http.StatusOK, &list)
	if len(list.Apps) != 1 || list.Apps[0].TotalUnits != 5 || list.Apps[0].RealizedProfit != 28 {
		t.Fatalf("apps = %+v", list.Apps)
	}

	var app struct {
		Days []struct {
			Date       string `json:"date"`
			GrossUnits int64  `json:"gross_units"`
		} `json:"days"`
	}
	getJSON(t, srv.URL+"/api/v1/apps/100", http.StatusOK, &app)
	if len(app.Days) != 2 || app.Days[0].Date != "2024-01-01" || app.Days[1].GrossUnits != 3 {
		t.Fatalf("days = %+v", app.Days)
	}

	getJSON(t, srv.URL+"/api/v1/apps/999", http.StatusNotFound, nil)
}

func TestListNotifications_Filters(t *testing.T) {
	srv := newTestServer(t, nil)

	var out struct {
		Notifications []domain.Notification `json:"notifications"`
		Total         int                   `json:"total"`
	}
	getJSON(t, srv.URL+"/api/v1/notifications?kind=reviews", http.StatusOK, &out)
	if out.Total != 1 || len(out.Notifications) != 1 || out.Notifications[0].ID != "n2" {
		t.Fatalf("notifications = %+v", out)
	}

	getJSON(t, srv.URL+"/api/v1/notifications?limit=1&page=2", http.StatusOK, &out)
	if out.Total != 2 || len(out.Notifications) != 1 || out.Notifications[0].ID != "n1" {
		t.Fatalf("page 2 = %+v", out)
	}
}

func TestRunPass(t *testing.T) {
	runner := &fakeRunner{status: domain.PassSucceeded}
	srv := newTestServer(t, runner)

	post := func(name string) int {
		resp, err := http.Post(srv.URL+"/api/v1/passes/"+name, "application/json", nil)
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := post("sales"); code != http.StatusOK {
		t.Fatalf("sales status = %d", code)
	}
	if code := post("nope"); code != http.StatusNotFound {
		t.Fatalf("unknown status = %d", code)
	}
	runner.status = domain.PassSkipped
	if code := post("reviews"); code != http.StatusConflict {
		t.Fatalf("skipped status = %d", code)
	}
	if len(runner.names) != 2 {
		t.Fatalf("runner calls = %v", runner.names)
	}
}

func TestRunPass_NoRunner(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, err := http.Post(srv.URL+"/api/v1/passes/sales", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestListNotifications_DateOnlyToCoversWholeDay(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		query string
		want  int
	}{
		{"to=2024-01-02", 2},
		{"from=2024-01-02&to=2024-01-02", 2},
		{"to=2024-01-01", 0},
		{"to=2024-01-02T12:00:30Z", 1},
	}
	for _, tt := range tests {
		var out struct {
			Total int `json:"total"`
		}
		getJSON(t, srv.URL+"/api/v1/notifications?"+tt.query, http.StatusOK, &out)
		if out.Total != tt.want {
			t.Errorf("%s: total = %d, want %d", tt.query, out.Total, tt.want)
		}
	}
}

func TestParseEndTime(t *testing.T) {
	end := parseEndTime("2024-01-05")
	if end == nil || end.Format(time.RFC3339Nano) != "2024-01-05T23:59:59.999999999Z" {
		t.Fatalf("parseEndTime(date) = %v", end)
	}
	exact := parseEndTime("2024-01-05T10:00:00Z")
	if exact == nil || exact.Hour() != 10 {
		t.Fatalf("parseEndTime(rfc3339) = %v", exact)
	}
	if parseEndTime("") != nil || parseEndTime("yesterday") != nil {
		t.Fatal("expected nil for empty or invalid input")
	}
}
