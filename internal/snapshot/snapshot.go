// Package snapshot exports a read-only summary of the reconciled state.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/storepulse/reconciler/internal/domain"
)

// AppSummary is one app's reconciled totals.
type AppSummary struct {
	AppID          string                  `json:"app_id"`
	Days           int                     `json:"days"`
	TotalUnits     int64                   `json:"total_units"`
	NetSalesUSD    string                  `json:"net_sales_usd"`
	RealizedProfit int64                   `json:"realized_profit_usd"`
	Reviews        *domain.ReviewAggregate `json:"reviews,omitempty"`
	ReviewScore    *float64                `json:"review_score,omitempty"`
}

type Snapshot struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Cursor      string       `json:"cursor"`
	Apps        []AppSummary `json:"apps"`
}

// Sink receives snapshots after successful passes.
type Sink interface {
	Export(ctx context.Context, snap Snapshot) error
}

// Dir writes latest.json into a local directory.
type Dir struct {
	Path string
}

func (d Dir) Export(_ context.Context, snap Snapshot) error {
	if err := os.MkdirAll(d.Path, 0o755); err != nil {
		return fmt.Errorf("snapshot: create %s: %w", d.Path, err)
	}
	data, err := encode(snap)
	if err != nil {
		return err
	}
	target := filepath.Join(d.Path, "latest.json")
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", tmp, err)
	}
	return os.Rename(tmp, target)
}

func encode(snap Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}
	return append(data, '\n'), nil
}

// Multi exports to every sink and joins their errors.
type Multi []Sink

func (m Multi) Export(ctx context.Context, snap Snapshot) error {
	var errs []error
	for _, s := range m {
		if err := s.Export(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
