package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ZeroCursor is the changed-dates watermark used before any data was seen.
const ZeroCursor = "0"

var ErrInvalidRecord = errors.New("invalid sales record")

// SalesRecord is one app's sales on one calendar date. The upstream reports
// cumulative-for-the-date totals, so a record for a date is replaced, never
// added to.
type SalesRecord struct {
	AppID      string  `json:"app_id"`
	GrossUnits int64   `json:"gross_units"`
	NetUnits   int64   `json:"net_units"`
	NetSales   float64 `json:"net_sales"`
}

// NewSalesRecord validates and builds a record.
func NewSalesRecord(appID string, grossUnits, netUnits int64, netSales float64) (SalesRecord, error) {
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return SalesRecord{}, fmt.Errorf("%w: empty app id", ErrInvalidRecord)
	}
	if grossUnits < 0 {
		return SalesRecord{}, fmt.Errorf("%w: app %s gross units %d", ErrInvalidRecord, appID, grossUnits)
	}
	return SalesRecord{
		AppID:      appID,
		GrossUnits: grossUnits,
		NetUnits:   netUnits,
		NetSales:   netSales,
	}, nil
}

// Add folds another line item of the same app and date into r.
func (r SalesRecord) Add(other SalesRecord) SalesRecord {
	r.GrossUnits += other.GrossUnits
	r.NetUnits += other.NetUnits
	r.NetSales += other.NetSales
	return r
}

// DailySales maps a date (YYYY-MM-DD as issued upstream) to the record for it.
type DailySales map[string]SalesRecord

// Ledger maps app id to its per-date sales.
type Ledger map[string]DailySales

// AppIDs returns the ledger's app ids in ascending order.
func (l Ledger) AppIDs() []string {
	ids := make([]string, 0, len(l))
	for id := range l {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dates returns the dates recorded for appID in ascending order.
func (l Ledger) Dates(appID string) []string {
	days := l[appID]
	dates := make([]string, 0, len(days))
	for date := range days {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

// Clone returns a deep copy.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for appID, days := range l {
		copied := make(DailySales, len(days))
		for date, rec := range days {
			copied[date] = rec
		}
		out[appID] = copied
	}
	return out
}

// AggregateMetric is the total over every recorded date of one app.
type AggregateMetric struct {
	TotalUnits  int64           `json:"total_units"`
	TotalProfit decimal.Decimal `json:"total_profit"`
}
