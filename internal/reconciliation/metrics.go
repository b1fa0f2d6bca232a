package reconciliation

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/storepulse/reconciler/internal/currency"
	"github.com/storepulse/reconciler/internal/domain"
	"github.com/storepulse/reconciler/internal/snapshot"
)

// ComputeMetrics sums units and net sales over every date of every app in
// the ledger.
func ComputeMetrics(ledger domain.Ledger) map[string]domain.AggregateMetric {
	metrics := make(map[string]domain.AggregateMetric, len(ledger))
	for appID, days := range ledger {
		m := domain.AggregateMetric{TotalProfit: decimal.Zero}
		for _, rec := range days {
			m.TotalUnits += rec.GrossUnits
			m.TotalProfit = m.TotalProfit.Add(currency.FromFloat(rec.NetSales))
		}
		metrics[appID] = m
	}
	return metrics
}

// MergeDay writes the fetched records of one date into the ledger. A stored
// record is replaced when its gross units differ; upstream totals are
// cumulative for the date, so replaying a date never double counts. It
// returns the number of records written.
func MergeDay(ledger domain.Ledger, date string, fetched map[string]domain.SalesRecord) int {
	written := 0
	for appID, rec := range fetched {
		days, ok := ledger[appID]
		if !ok {
			days = make(domain.DailySales)
			ledger[appID] = days
		}
		stored, exists := days[date]
		if exists && stored.GrossUnits == rec.GrossUnits {
			continue
		}
		if rec.AppID == "" {
			rec.AppID = appID
		}
		days[date] = rec
		written++
	}
	return written
}

// SalesDelta is a notify-worthy change of one app's unit total.
type SalesDelta struct {
	AppID          string `json:"app_id"`
	Units          int64  `json:"units"`
	Delta          int64  `json:"delta"`
	RealizedProfit int64  `json:"realized_profit"`
}

// SalesDeltas compares metrics before and after a merge. Apps missing from
// initial start from a zero baseline. The result is ordered by app id.
func SalesDeltas(initial, updated map[string]domain.AggregateMetric) []SalesDelta {
	var deltas []SalesDelta
	for appID, after := range updated {
		var before int64
		if m, ok := initial[appID]; ok {
			before = m.TotalUnits
		}
		if after.TotalUnits == before {
			continue
		}
		deltas = append(deltas, SalesDelta{
			AppID:          appID,
			Units:          after.TotalUnits,
			Delta:          after.TotalUnits - before,
			RealizedProfit: currency.RealizedProfit(after.TotalProfit),
		})
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i].AppID < deltas[j].AppID })
	return deltas
}

func (d SalesDelta) Message() string {
	sign := "+"
	magnitude := d.Delta
	if magnitude < 0 {
		sign = "-"
		magnitude = -magnitude
	}
	return fmt.Sprintf("%s\nUnits: %d (%s%d)\nProfit: $%s",
		d.AppID, d.Units, sign, magnitude, currency.FormatWhole(d.RealizedProfit))
}

// ReviewChange is a notify-worthy change of one app's review total.
type ReviewChange struct {
	AppID     string                 `json:"app_id"`
	Aggregate domain.ReviewAggregate `json:"aggregate"`
	Score     float64                `json:"score"`
}

func (c ReviewChange) Message() string {
	return fmt.Sprintf("%s\nTotal Reviews: %d\nReview Score: %.1f", c.AppID, c.Aggregate.Total, c.Score)
}

// Summaries returns one entry per app known to the ledger or the review
// cache, ordered by app id.
func Summaries(ledger domain.Ledger, reviews domain.ReviewCache) []snapshot.AppSummary {
	metrics := ComputeMetrics(ledger)
	seen := make(map[string]struct{}, len(ledger)+len(reviews))
	ids := make([]string, 0, len(ledger)+len(reviews))
	for id := range ledger {
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for id := range reviews {
		if _, ok := seen[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]snapshot.AppSummary, 0, len(ids))
	for _, id := range ids {
		m, ok := metrics[id]
		if !ok {
			m.TotalProfit = decimal.Zero
		}
		sum := snapshot.AppSummary{
			AppID:          id,
			Days:           len(ledger[id]),
			TotalUnits:     m.TotalUnits,
			NetSalesUSD:    m.TotalProfit.StringFixed(2),
			RealizedProfit: currency.RealizedProfit(m.TotalProfit),
		}
		if agg, ok := reviews[id]; ok {
			agg := agg
			sum.Reviews = &agg
			if score, ok := agg.Score(); ok {
				sum.ReviewScore = &score
			}
		}
		out = append(out, sum)
	}
	return out
}
