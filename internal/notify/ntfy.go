package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Ntfy posts messages to an ntfy topic URL such as https://ntfy.sh/my-topic.
type Ntfy struct {
	topicURL string
	client   *http.Client
}

func NewNtfy(topicURL string, timeout time.Duration) (*Ntfy, error) {
	topicURL = strings.TrimSpace(topicURL)
	if topicURL == "" {
		return nil, fmt.Errorf("notify: ntfy topic url is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Ntfy{topicURL: topicURL, client: &http.Client{Timeout: timeout}}, nil
}

func (n *Ntfy) Publish(ctx context.Context, text string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.topicURL, strings.NewReader(text))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: ntfy post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notify: ntfy status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
