package domain

import "time"

type NotificationKind string

const (
	NotificationSales   NotificationKind = "sales"
	NotificationReviews NotificationKind = "reviews"
)

type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	AppID     string           `json:"app_id"`
	Message   string           `json:"message"`
	Delivered bool             `json:"delivered"`
	CreatedAt time.Time        `json:"created_at"`
}

type PassStatus string

const (
	PassSucceeded PassStatus = "succeeded"
	PassFailed    PassStatus = "failed"
	PassSkipped   PassStatus = "skipped"
)

// PassRun records the outcome of one reconciliation pass.
type PassRun struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Status        PassStatus `json:"status"`
	Notifications int        `json:"notifications"`
	Error         string     `json:"error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    time.Time  `json:"finished_at"`
}
