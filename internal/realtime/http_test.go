package realtime

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPCredentialSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/session" {
			t.Errorf("request = %s %s, want GET /api/session", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"sess_1","client_secret":{"value":"ek_abc","expires_at":1735689600}}`))
	}))
	defer srv.Close()

	cred, err := NewHTTPCredentialSource(srv.URL+"/", time.Second).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if cred.Value != "ek_abc" {
		t.Fatalf("Value = %q, want ek_abc", cred.Value)
	}
	if cred.ExpiresAt.Unix() != 1735689600 {
		t.Fatalf("ExpiresAt = %v, want unix 1735689600", cred.ExpiresAt)
	}
}

func TestHTTPCredentialSourceMissingSecret(t *testing.T) {
	for name, handler := range map[string]http.HandlerFunc{
		"missing value": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
		},
		"server error": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"Internal Server Error"}`))
		},
		"not json": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		},
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()
			_, err := NewHTTPCredentialSource(srv.URL, time.Second).Fetch(context.Background())
			if !errors.Is(err, ErrCredential) {
				t.Fatalf("Fetch() error = %v, want ErrCredential", err)
			}
		})
	}
}

func TestSignalerExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/realtime" || r.URL.Query().Get("model") != "gpt-test" {
			t.Errorf("url = %s, want /v1/realtime?model=gpt-test", r.URL)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer ek_abc" {
			t.Errorf("Authorization = %q, want bearer secret", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/sdp" {
			t.Errorf("Content-Type = %q, want application/sdp", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "v=0 offer" {
			t.Errorf("body = %q, want offer", body)
		}
		_, _ = w.Write([]byte("v=0 answer"))
	}))
	defer srv.Close()

	answer, err := NewSignaler(srv.URL+"/v1", "gpt-test", time.Second).Exchange(context.Background(), "ek_abc", "v=0 offer")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if answer != "v=0 answer" {
		t.Fatalf("answer = %q, want %q", answer, "v=0 answer")
	}
}

func TestSignalerRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	if _, err := NewSignaler(srv.URL, "m", time.Second).Exchange(context.Background(), "x", "offer"); err == nil {
		t.Fatalf("Exchange() expected error")
	}
}
