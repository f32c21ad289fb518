// ABOUTME: HTTP client for handing human-authored messages to the bot engine
// ABOUTME: Best-effort collaborator; every call is bounded by a timeout

package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Relay delivers a human-authored message to the external messaging
// engine. Delivery is best-effort: the caller records the message
// durably before invoking Deliver and treats any error as a
// recorded-but-not-delivered outcome, never as a reason to roll back.
type Relay interface {
	Deliver(ctx context.Context, handle, content string) error
}

// deliverRequest is the JSON body the bot engine expects.
type deliverRequest struct {
	PhoneNumber string `json:"phone_number"`
	Message     string `json:"message"`
}

// HTTPRelay implements Relay against the bot engine's HTTP endpoint.
type HTTPRelay struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTPRelay creates a relay client for the given endpoint URL.
// If timeout is zero, a 10 second default is used.
func NewHTTPRelay(endpoint string, timeout time.Duration, logger *slog.Logger) *HTTPRelay {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPRelay{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With("component", "relay"),
	}
}

// Deliver posts the message to the bot engine. A transport error,
// timeout, or non-2xx response is returned as an error; the response
// body is included (truncated) for non-2xx statuses.
func (r *HTTPRelay) Deliver(ctx context.Context, handle, content string) error {
	body, err := json.Marshal(deliverRequest{
		PhoneNumber: handle,
		Message:     content,
	})
	if err != nil {
		return fmt.Errorf("encoding relay request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("relay returned status %d: %s", resp.StatusCode, string(detail))
	}

	r.logger.Debug("message relayed", "handle", handle, "status", resp.StatusCode)
	return nil
}

var _ Relay = (*HTTPRelay)(nil)
