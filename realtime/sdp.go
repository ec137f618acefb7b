package realtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.aimuz.me/commentator/internal/types"
)

// ErrNegotiationRejected is returned when the realtime endpoint refuses the
// offer. It matches types.ErrNetwork.
var ErrNegotiationRejected = fmt.Errorf("negotiation rejected: %w", types.ErrNetwork)

// httpClient is a package-level client with connection reuse.
var httpClient = &http.Client{
	Timeout: 30 * time.Second,
}

// ExchangeSDP posts the local offer to baseURL?model=model and returns the
// answer body. A nil client uses the package default.
func ExchangeSDP(ctx context.Context, client *http.Client, baseURL, model, offer, token string) (string, error) {
	if client == nil {
		client = httpClient
	}

	endpoint, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse realtime url: %w", err)
	}
	q := endpoint.Query()
	q.Set("model", model)
	endpoint.RawQuery = q.Encode()

	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		keyPreview := token
		if len(keyPreview) > 8 {
			keyPreview = keyPreview[:8] + "..."
		}
		slog.Debug("exchanging sdp", "url", endpoint.String(), "offerLen", len(offer), "keyPreview", keyPreview)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), strings.NewReader(offer))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/sdp")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w: %w", types.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w: %w", types.ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Error("sdp exchange failed", "status", resp.StatusCode, "body", string(body))
		return "", &RejectedError{Status: resp.StatusCode, Body: string(body)}
	}

	return string(body), nil
}

// RejectedError carries the status and body of a refused negotiation.
type RejectedError struct {
	Status int
	Body   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("negotiation rejected (status %d)", e.Status)
}

// Is reports a match against ErrNegotiationRejected and types.ErrNetwork.
func (e *RejectedError) Is(target error) bool {
	return target == ErrNegotiationRejected || target == types.ErrNetwork
}
