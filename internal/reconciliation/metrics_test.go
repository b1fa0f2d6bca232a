package reconciliation

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/storepulse/reconciler/internal/domain"
)

func rec(app string, gross int64, net float64) domain.SalesRecord {
	return domain.SalesRecord{AppID: app, GrossUnits: gross, NetUnits: gross, NetSales: net}
}

func TestMergeDay_ReplayIsIdempotent(t *testing.T) {
	ledger := domain.Ledger{}
	day := map[string]domain.SalesRecord{"100": rec("100", 5, 40)}

	if n := MergeDay(ledger, "2024-01-01", day); n != 1 {
		t.Fatalf("first merge wrote %d records, want 1", n)
	}
	if n := MergeDay(ledger, "2024-01-01", day); n != 0 {
		t.Fatalf("replay wrote %d records, want 0", n)
	}
	m := ComputeMetrics(ledger)["100"]
	if m.TotalUnits != 5 {
		t.Fatalf("units after replay = %d, want 5", m.TotalUnits)
	}
}

func TestMergeDay_ReplacesChangedDay(t *testing.T) {
	ledger := domain.Ledger{"100": domain.DailySales{"2024-01-01": rec("100", 5, 40)}}
	MergeDay(ledger, "2024-01-01", map[string]domain.SalesRecord{"100": rec("100", 8, 64)})

	m := ComputeMetrics(ledger)["100"]
	if m.TotalUnits != 8 {
		t.Fatalf("units = %d, want 8 (replace, not add)", m.TotalUnits)
	}
	if !m.TotalProfit.Equal(decimal.RequireFromString("64")) {
		t.Fatalf("net sales = %s, want 64", m.TotalProfit)
	}
}

func TestComputeMetrics_SumsAllDates(t *testing.T) {
	ledger := domain.Ledger{
		"100": domain.DailySales{
			"2024-01-01": rec("100", 2, 10.1),
			"2024-01-02": rec("100", 3, 20.2),
		},
		"200": domain.DailySales{},
	}
	metrics := ComputeMetrics(ledger)
	if metrics["100"].TotalUnits != 5 || !metrics["100"].TotalProfit.Equal(decimal.RequireFromString("30.3")) {
		t.Fatalf("app 100 metric = %+v", metrics["100"])
	}
	if m, ok := metrics["200"]; !ok || m.TotalUnits != 0 {
		t.Fatalf("empty app should still get a zero metric, got %+v ok=%v", m, ok)
	}
}

func TestSalesDeltas_BaselineAndOrdering(t *testing.T) {
	initial := ComputeMetrics(domain.Ledger{
		"300": domain.DailySales{"d": rec("300", 10, 100)},
		"200": domain.DailySales{"d": rec("200", 4, 10)},
	})
	updated := ComputeMetrics(domain.Ledger{
		"300": domain.DailySales{"d": rec("300", 7, 70)},
		"200": domain.DailySales{"d": rec("200", 4, 10)},
		"100": domain.DailySales{"d": rec("100", 5, 40)},
	})

	deltas := SalesDeltas(initial, updated)
	if len(deltas) != 2 {
		t.Fatalf("got %d deltas, want 2: %+v", len(deltas), deltas)
	}
	if deltas[0].AppID != "100" || deltas[0].Delta != 5 || deltas[0].RealizedProfit != 28 {
		t.Fatalf("new app delta = %+v", deltas[0])
	}
	if deltas[1].AppID != "300" || deltas[1].Delta != -3 || deltas[1].RealizedProfit != 49 {
		t.Fatalf("shrinking app delta = %+v", deltas[1])
	}
}

func TestSalesDelta_Message(t *testing.T) {
	tests := []struct {
		name  string
		delta SalesDelta
		want  string
	}{
		{"gain", SalesDelta{AppID: "100", Units: 5, Delta: 5, RealizedProfit: 28}, "100\nUnits: 5 (+5)\nProfit: $28"},
		{"loss", SalesDelta{AppID: "300", Units: 7, Delta: -3, RealizedProfit: 49}, "300\nUnits: 7 (-3)\nProfit: $49"},
		{"thousands", SalesDelta{AppID: "9", Units: 1500, Delta: 1, RealizedProfit: 1234567}, "9\nUnits: 1500 (+1)\nProfit: $1,234,567"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.delta.Message(); got != tt.want {
				t.Fatalf("Message() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRealizedProfitFloorsAfterShare(t *testing.T) {
	ledger := domain.Ledger{"100": domain.DailySales{"d": rec("100", 1, 100.499)}}
	deltas := SalesDeltas(nil, ComputeMetrics(ledger))
	if len(deltas) != 1 || deltas[0].RealizedProfit != 70 {
		t.Fatalf("deltas = %+v, want realized profit 70", deltas)
	}
}

func TestReviewChange_Message(t *testing.T) {
	c := ReviewChange{AppID: "100", Aggregate: domain.ReviewAggregate{Total: 3, Positive: 2, Negative: 1}, Score: 200.0 / 3}
	want := "100\nTotal Reviews: 3\nReview Score: 66.7"
	if got := c.Message(); got != want {
		t.Fatalf("Message() = %q, want %q", got, want)
	}
}

func TestSummaries_IncludesReviewOnlyApps(t *testing.T) {
	ledger := domain.Ledger{"100": domain.DailySales{"d": rec("100", 5, 40)}}
	reviews := domain.ReviewCache{
		"100": {Total: 4, Positive: 3, Negative: 1},
		"050": {Total: 0},
	}
	got := Summaries(ledger, reviews)
	if len(got) != 2 || got[0].AppID != "050" || got[1].AppID != "100" {
		t.Fatalf("summaries = %+v", got)
	}
	if got[0].ReviewScore != nil {
		t.Fatalf("zero-review app should have no score")
	}
	if got[1].RealizedProfit != 28 || got[1].NetSalesUSD != "40.00" || got[1].ReviewScore == nil || *got[1].ReviewScore != 75 {
		t.Fatalf("app 100 summary = %+v", got[1])
	}
}
