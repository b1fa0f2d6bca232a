package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/storepulse/reconciler/internal/domain"
)

// StoreClient reads public review summaries.
type StoreClient struct {
	config Config
	client *http.Client
}

func NewStoreClient(cfg Config) *StoreClient {
	cfg = cfg.withDefaults()
	return &StoreClient{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type reviewsEnvelope struct {
	Success      int `json:"success"`
	QuerySummary *struct {
		TotalReviews  *int64 `json:"total_reviews"`
		TotalPositive *int64 `json:"total_positive"`
		TotalNegative *int64 `json:"total_negative"`
	} `json:"query_summary"`
}

// Reviews returns the current review aggregate for appID. ok is false when
// the upstream gave no usable data (bad status, success != 1, missing
// summary); err is reserved for transport failures.
func (c *StoreClient) Reviews(ctx context.Context, appID string) (domain.ReviewAggregate, bool, error) {
	params := url.Values{}
	params.Set("json", "1")
	params.Set("language", "all")
	params.Set("num_per_page", "0")
	endpoint := c.config.StoreBaseURL + "appreviews/" + url.PathEscape(appID) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.ReviewAggregate{}, false, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.ReviewAggregate{}, false, fmt.Errorf("steam: appreviews %s: %w", appID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ReviewAggregate{}, false, fmt.Errorf("steam: read appreviews %s: %w", appID, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.ReviewAggregate{}, false, nil
	}
	return parseReviews(body)
}

func parseReviews(body []byte) (domain.ReviewAggregate, bool, error) {
	var envelope reviewsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return domain.ReviewAggregate{}, false, nil
	}
	summary := envelope.QuerySummary
	if envelope.Success != 1 || summary == nil {
		return domain.ReviewAggregate{}, false, nil
	}
	if summary.TotalReviews == nil || summary.TotalPositive == nil || summary.TotalNegative == nil {
		return domain.ReviewAggregate{}, false, nil
	}
	return domain.ReviewAggregate{
		Total:    *summary.TotalReviews,
		Positive: *summary.TotalPositive,
		Negative: *summary.TotalNegative,
	}, true, nil
}
