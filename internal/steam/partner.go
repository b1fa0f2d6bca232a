package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/storepulse/reconciler/internal/config"
	"github.com/storepulse/reconciler/internal/domain"
)

const (
	changedDatesPath  = "GetChangedDatesForPartner/v001/"
	detailedSalesPath = "GetDetailedSales/v001/"
)

// PartnerClient talks to the partner financial reporting API.
type PartnerClient struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
}

func NewPartnerClient(cfg Config) (*PartnerClient, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	return &PartnerClient{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst),
	}, nil
}

type changedDatesEnvelope struct {
	Response struct {
		Dates               []string     `json:"dates"`
		ResultHighwatermark *json.Number `json:"result_highwatermark"`
	} `json:"response"`
}

// ChangedDates returns the dates whose sales changed since cursor, in the
// order the upstream listed them, plus the new cursor.
func (c *PartnerClient) ChangedDates(ctx context.Context, cursor string) ([]string, string, error) {
	if strings.TrimSpace(cursor) == "" {
		cursor = domain.ZeroCursor
	}
	params := url.Values{}
	params.Set("key", c.config.APIKey)
	params.Set("highwatermark_id", cursor)

	var envelope changedDatesEnvelope
	if err := c.get(ctx, changedDatesPath, params, &envelope); err != nil {
		return nil, cursor, err
	}
	if envelope.Response.ResultHighwatermark == nil {
		return nil, cursor, fmt.Errorf("%w: result_highwatermark", ErrMissingField)
	}
	return envelope.Response.Dates, envelope.Response.ResultHighwatermark.String(), nil
}

type detailedSalesEnvelope struct {
	Response struct {
		Results *[]detailedSalesEntry `json:"results"`
	} `json:"response"`
}

type detailedSalesEntry struct {
	PrimaryAppID   *json.Number `json:"primary_appid"`
	GrossUnitsSold *json.Number `json:"gross_units_sold"`
	NetUnitsSold   *json.Number `json:"net_units_sold"`
	NetSalesUSD    *json.Number `json:"net_sales_usd"`
}

// SalesForDate replays every sales line item recorded on date starting at
// record id startID and returns one record per app. Line items missing a
// required field are dropped.
func (c *PartnerClient) SalesForDate(ctx context.Context, date, startID string) (map[string]domain.SalesRecord, error) {
	if strings.TrimSpace(startID) == "" {
		startID = domain.ZeroCursor
	}
	params := url.Values{}
	params.Set("date", date)
	params.Set("key", c.config.APIKey)
	params.Set("highwatermark_id", startID)

	var envelope detailedSalesEnvelope
	if err := c.get(ctx, detailedSalesPath, params, &envelope); err != nil {
		return nil, err
	}
	if envelope.Response.Results == nil {
		return nil, fmt.Errorf("%w: results for %s", ErrMissingField, date)
	}
	return aggregateEntries(date, *envelope.Response.Results), nil
}

func aggregateEntries(date string, entries []detailedSalesEntry) map[string]domain.SalesRecord {
	log := config.Logger("steam")
	sales := make(map[string]domain.SalesRecord)
	for i, entry := range entries {
		rec, err := entry.record()
		if err != nil {
			log.WithFields(logrus.Fields{"date": date, "index": i}).Debugf("dropping sales entry: %v", err)
			continue
		}
		if existing, ok := sales[rec.AppID]; ok {
			rec = existing.Add(rec)
		}
		sales[rec.AppID] = rec
	}
	return sales
}

func (e detailedSalesEntry) record() (domain.SalesRecord, error) {
	if e.PrimaryAppID == nil || e.GrossUnitsSold == nil || e.NetUnitsSold == nil || e.NetSalesUSD == nil {
		return domain.SalesRecord{}, ErrMissingField
	}
	gross, err := parseUnits(*e.GrossUnitsSold)
	if err != nil {
		return domain.SalesRecord{}, fmt.Errorf("gross_units_sold: %w", err)
	}
	net, err := parseUnits(*e.NetUnitsSold)
	if err != nil {
		return domain.SalesRecord{}, fmt.Errorf("net_units_sold: %w", err)
	}
	netSales, err := e.NetSalesUSD.Float64()
	if err != nil {
		return domain.SalesRecord{}, fmt.Errorf("net_sales_usd: %w", err)
	}
	return domain.NewSalesRecord(e.PrimaryAppID.String(), gross, net, netSales)
}

func parseUnits(n json.Number) (int64, error) {
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

func (c *PartnerClient) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	endpoint := c.config.PartnerBaseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("steam: %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("steam: read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Endpoint: path, StatusCode: resp.StatusCode, Body: truncate(strings.TrimSpace(string(body)), 256)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("steam: decode %s: %w", path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
