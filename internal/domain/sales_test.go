package domain

import (
	"errors"
	"testing"
)

func TestNewSalesRecord_Validates(t *testing.T) {
	if _, err := NewSalesRecord("  ", 1, 1, 1); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord for empty app id, got %v", err)
	}
	if _, err := NewSalesRecord("100", -1, 0, 0); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord for negative gross units, got %v", err)
	}
	rec, err := NewSalesRecord(" 100 ", 5, 4, 40)
	if err != nil {
		t.Fatalf("NewSalesRecord: %v", err)
	}
	if rec.AppID != "100" || rec.GrossUnits != 5 || rec.NetUnits != 4 || rec.NetSales != 40 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestLedger_CloneIsDeep(t *testing.T) {
	l := Ledger{"100": DailySales{"2024-01-01": {AppID: "100", GrossUnits: 1}}}
	c := l.Clone()
	c["100"]["2024-01-01"] = SalesRecord{AppID: "100", GrossUnits: 9}
	c["200"] = DailySales{}

	if l["100"]["2024-01-01"].GrossUnits != 1 {
		t.Fatalf("clone shares day map with original")
	}
	if _, ok := l["200"]; ok {
		t.Fatalf("clone shares app map with original")
	}
}

func TestLedger_SortedKeys(t *testing.T) {
	l := Ledger{
		"300": DailySales{"2024-01-02": {}, "2024-01-01": {}},
		"100": DailySales{},
	}
	ids := l.AppIDs()
	if len(ids) != 2 || ids[0] != "100" || ids[1] != "300" {
		t.Fatalf("AppIDs = %v", ids)
	}
	dates := l.Dates("300")
	if len(dates) != 2 || dates[0] != "2024-01-01" {
		t.Fatalf("Dates = %v", dates)
	}
}

func TestReviewAggregate_Score(t *testing.T) {
	if _, ok := (ReviewAggregate{}).Score(); ok {
		t.Fatalf("zero total must not yield a score")
	}
	score, ok := ReviewAggregate{Total: 8, Positive: 6, Negative: 2}.Score()
	if !ok || score != 75 {
		t.Fatalf("Score = %v, %v", score, ok)
	}
}
