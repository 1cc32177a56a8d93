package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ent0n29/concierge/internal/reliability"
)

var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not set")

// RealtimeMinter requests ephemeral realtime session keys with the server's
// long-lived API key.
type RealtimeMinter struct {
	baseURL string
	apiKey  string
	model   string
	voice   string
	client  *http.Client
	retry   reliability.Policy
}

func NewRealtimeMinter(baseURL, apiKey, model, voice string, timeout time.Duration) *RealtimeMinter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RealtimeMinter{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		model:   model,
		voice:   voice,
		client:  &http.Client{Timeout: timeout},
		retry:   reliability.Policy{Attempts: 3, Base: 200 * time.Millisecond, Cap: 2 * time.Second},
	}
}

type mintRequest struct {
	Model string `json:"model"`
	Voice string `json:"voice,omitempty"`
}

// Mint returns the upstream session object verbatim. Non-2xx statuses and
// non-JSON bodies are errors; 429 and 5xx are retried with backoff.
func (m *RealtimeMinter) Mint(ctx context.Context) (json.RawMessage, error) {
	if m.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	payload, err := json.Marshal(mintRequest{Model: m.model, Voice: m.voice})
	if err != nil {
		return nil, err
	}
	var out json.RawMessage
	err = m.retry.Do(ctx, func(ctx context.Context) error {
		body, err := m.post(ctx, payload)
		if err != nil {
			return err
		}
		out = body
		return nil
	})
	return out, err
}

func (m *RealtimeMinter) post(ctx context.Context, payload []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/realtime/sessions", bytes.NewReader(payload))
	if err != nil {
		return nil, reliability.Permanent{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("realtime sessions request: %w", err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read realtime sessions response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		err := fmt.Errorf("realtime sessions status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
		if reliability.IsRetryableStatus(res.StatusCode) {
			return nil, err
		}
		return nil, reliability.Permanent{Err: err}
	}
	if !json.Valid(body) {
		return nil, reliability.Permanent{Err: fmt.Errorf("realtime sessions response is not JSON")}
	}
	return json.RawMessage(body), nil
}
