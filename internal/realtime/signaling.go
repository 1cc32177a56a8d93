package realtime

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Signaler performs the single offer/answer exchange with the realtime
// service.
type Signaler struct {
	endpoint string
	client   *http.Client
}

// NewSignaler targets {baseURL}/realtime?model={model}.
func NewSignaler(baseURL, model string, timeout time.Duration) *Signaler {
	q := url.Values{}
	q.Set("model", model)
	return &Signaler{
		endpoint: strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/realtime?" + q.Encode(),
		client:   &http.Client{Timeout: timeout},
	}
}

// Exchange posts the local offer and returns the remote answer SDP.
func (s *Signaler) Exchange(ctx context.Context, secret, offerSDP string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(offerSDP))
	if err != nil {
		return "", fmt.Errorf("create signaling request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+secret)
	req.Header.Set("Content-Type", "application/sdp")

	res, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send offer: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read answer: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("signaling status %d: %s", res.StatusCode, truncate(strings.TrimSpace(string(body)), 512))
	}
	answer := string(body)
	if strings.TrimSpace(answer) == "" {
		return "", fmt.Errorf("empty answer from realtime service")
	}
	return answer, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
