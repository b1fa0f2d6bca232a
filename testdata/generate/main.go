// Command generate writes a deterministic legacy state directory
// (watermark_changed_dates.txt, current_sales.json, current_reviews.json)
// that the server can import through LEGACY_STATE_DIR.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/storepulse/reconciler/internal/config"
	"github.com/storepulse/reconciler/internal/currency"
	"github.com/storepulse/reconciler/internal/domain"
	"github.com/storepulse/reconciler/internal/reconciliation"
	"github.com/storepulse/reconciler/internal/repository/filestate"
)

func main() {
	out := flag.String("out", "testdata/legacy", "output directory")
	apps := flag.Int("apps", 5, "number of apps")
	days := flag.Int("days", 14, "number of sales dates per app")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	log := config.Logger("generate")
	rng := rand.New(rand.NewSource(*seed))
	ctx := context.Background()

	store, err := filestate.New(*out)
	if err != nil {
		log.Fatalf("open %s: %v", *out, err)
	}

	// Date range starts 2024-01-08.
	startDate := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

	ledger := make(domain.Ledger, *apps)
	reviews := make(domain.ReviewCache, *apps)
	for i := 0; i < *apps; i++ {
		appID := strconv.Itoa(1_000_000 + (i+1)*10)
		price := []float64{4.99, 9.99, 14.99, 19.99}[rng.Intn(4)]

		daily := make(domain.DailySales, *days)
		for d := 0; d < *days; d++ {
			// Roughly 20% of dates have no sales for an app.
			if rng.Float64() < 0.2 {
				continue
			}
			gross := int64(rng.Intn(40) + 1)
			refunds := int64(rng.Intn(int(gross)/10 + 1))
			net := math.Round(float64(gross-refunds)*price*100) / 100

			rec, err := domain.NewSalesRecord(appID, gross, gross-refunds, net)
			if err != nil {
				log.Fatalf("record: %v", err)
			}
			daily[startDate.AddDate(0, 0, d).Format("2006-01-02")] = rec
		}
		ledger[appID] = daily

		total := int64(rng.Intn(500))
		positive := int64(math.Round(float64(total) * (0.55 + rng.Float64()*0.4)))
		reviews[appID] = domain.ReviewAggregate{Total: total, Positive: positive, Negative: total - positive}
	}

	cursor := strconv.FormatInt(int64(rng.Intn(900_000)+100_000), 10)
	if err := store.CommitSales(ctx, ledger, cursor); err != nil {
		log.Fatalf("write sales: %v", err)
	}
	if err := store.SaveReviews(ctx, reviews); err != nil {
		log.Fatalf("write reviews: %v", err)
	}

	for _, sum := range reconciliation.Summaries(ledger, reviews) {
		fmt.Printf("%s  days=%-3d units=%-5d profit=$%s\n",
			sum.AppID, sum.Days, sum.TotalUnits, currency.FormatWhole(sum.RealizedProfit))
	}
	fmt.Printf("Generated %d apps at cursor %s -> %s\n", len(ledger), cursor, store.Dir())
}
