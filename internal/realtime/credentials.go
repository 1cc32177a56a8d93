package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Credential is a short-lived secret scoped to one realtime session.
type Credential struct {
	Value     string
	ExpiresAt time.Time
}

type CredentialSource interface {
	Fetch(ctx context.Context) (Credential, error)
}

// SessionResponse is the credential-issuance payload; only the client
// secret is interpreted.
type SessionResponse struct {
	ClientSecret struct {
		Value     string `json:"value"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"client_secret"`
}

// HTTPCredentialSource fetches ephemeral keys from the companion server.
type HTTPCredentialSource struct {
	url    string
	client *http.Client
}

func NewHTTPCredentialSource(serverURL string, timeout time.Duration) *HTTPCredentialSource {
	return &HTTPCredentialSource{
		url:    strings.TrimRight(strings.TrimSpace(serverURL), "/") + "/api/session",
		client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPCredentialSource) Fetch(ctx context.Context) (Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: create request: %v", ErrCredential, err)
	}
	res, err := s.client.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrCredential, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return Credential{}, fmt.Errorf("%w: session endpoint status %d: %s", ErrCredential, res.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload SessionResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&payload); err != nil {
		return Credential{}, fmt.Errorf("%w: decode session response: %v", ErrCredential, err)
	}
	value := strings.TrimSpace(payload.ClientSecret.Value)
	if value == "" {
		return Credential{}, fmt.Errorf("%w: no ephemeral key found in server response", ErrCredential)
	}

	cred := Credential{Value: value}
	if payload.ClientSecret.ExpiresAt > 0 {
		cred.ExpiresAt = time.Unix(payload.ClientSecret.ExpiresAt, 0)
	}
	return cred, nil
}
