// Package telepush delivers notifications through the Telepush webhook API.
package telepush

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public Telepush messages endpoint.
const DefaultBaseURL = "https://telepush.dev/api/messages"

const defaultTimeout = 10 * time.Second

// ErrDelivery is returned when the webhook answers with a non-2xx status.
var ErrDelivery = errors.New("telepush delivery failed")

// Config controls the webhook target.
type Config struct {
	BaseURL        string
	RecipientToken string
	Timeout        time.Duration
}

// Notifier posts messages to {BaseURL}/{RecipientToken}.
type Notifier struct {
	endpoint string
	client   *http.Client
}

type payload struct {
	Text string `json:"text"`
}

// New validates cfg and builds a Notifier.
func New(cfg Config) (*Notifier, error) {
	if strings.TrimSpace(cfg.RecipientToken) == "" {
		return nil, errors.New("telepush recipient token is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("parse telepush base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Notifier{
		endpoint: strings.TrimRight(base, "/") + "/" + url.PathEscape(cfg.RecipientToken),
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Send posts message as {"text": message}.
func (n *Notifier) Send(ctx context.Context, message string) error {
	body, err := json.Marshal(payload{Text: message})
	if err != nil {
		return fmt.Errorf("marshal telepush payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build telepush request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post telepush message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrDelivery, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
