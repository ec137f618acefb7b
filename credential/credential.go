// Package credential fetches short-lived realtime tokens from the local
// control plane.
package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.aimuz.me/commentator/internal/types"
)

// Generic failure messages used when the server supplies none.
const (
	msgRequestFailed   = "failed to get session token"
	msgInvalidResponse = "invalid session token response"
)

// Token is an ephemeral credential. It is single-use; expiry is informational.
type Token struct {
	Value     string
	ExpiresAt int64
}

// Error is a failed fetch. Message is the server-supplied text when present.
type Error struct {
	Status  int // 0 for transport failures
	Message string
	kind    error
}

func (e *Error) Error() string { return e.Message }

// Unwrap returns types.ErrNetwork or types.ErrConfiguration.
func (e *Error) Unwrap() error { return e.kind }

// Fetcher retrieves tokens with a single GET per call. It never retries.
type Fetcher struct {
	URL  string
	HTTP *http.Client
}

// httpClient is a package-level client with connection reuse.
var httpClient = &http.Client{
	Timeout: 30 * time.Second,
}

// NewFetcher returns a Fetcher for the session endpoint at url.
func NewFetcher(url string) *Fetcher {
	return &Fetcher{URL: url, HTTP: httpClient}
}

type sessionResponse struct {
	ClientSecret *struct {
		Value     string `json:"value"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"client_secret"`
	Error json.RawMessage `json:"error"`
}

// Fetch issues one request to the session endpoint.
func (f *Fetcher) Fetch(ctx context.Context) (Token, error) {
	client := f.HTTP
	if client == nil {
		client = httpClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return Token{}, &Error{Message: fmt.Sprintf("create request: %v", err), kind: types.ErrNetwork}
	}

	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("session request failed", "url", f.URL, "error", err)
		return Token{}, &Error{Message: msgRequestFailed, kind: types.ErrNetwork}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, &Error{Status: resp.StatusCode, Message: msgRequestFailed, kind: types.ErrNetwork}
	}

	var parsed sessionResponse
	decodeErr := json.Unmarshal(body, &parsed)
	serverMsg := ""
	if decodeErr == nil {
		serverMsg = errorMessage(parsed.Error)
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok || serverMsg != "" {
		msg := serverMsg
		if msg == "" {
			msg = msgRequestFailed
		}
		return Token{}, &Error{Status: resp.StatusCode, Message: msg, kind: classify(resp.StatusCode, msg)}
	}

	if decodeErr != nil || parsed.ClientSecret == nil || parsed.ClientSecret.Value == "" {
		return Token{}, &Error{Status: resp.StatusCode, Message: msgInvalidResponse, kind: types.ErrNetwork}
	}

	return Token{
		Value:     parsed.ClientSecret.Value,
		ExpiresAt: parsed.ClientSecret.ExpiresAt,
	}, nil
}

// errorMessage accepts both {"error":"text"} and {"error":{"message":"text"}}.
func errorMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return msgRequestFailed
}

func classify(status int, msg string) error {
	if status == http.StatusServiceUnavailable {
		return types.ErrConfiguration
	}
	if status >= 500 && strings.Contains(strings.ToLower(msg), "configuration") {
		return types.ErrConfiguration
	}
	return types.ErrNetwork
}
