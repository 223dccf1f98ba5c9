// Package provider talks to the external slot game provider that hosts the
// minedrop game and its wallet callbacks.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"tgcasino/config"
	"tgcasino/metrics"
	"tgcasino/models"
)

// StatusError is returned when the provider answers with a non-2xx status
type StatusError struct {
	Call       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider %s returned status %d: %s", e.Call, e.StatusCode, e.Body)
}

// Client implements service.SlotProvider over HTTP
type Client struct {
	baseURL    string
	apiKey     string
	maxRetries int
	httpClient *http.Client
}

// NewClient creates a provider client from configuration
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:    cfg.ProviderAPIURL,
		apiKey:     cfg.ProviderAPIKey,
		maxRetries: cfg.ProviderMaxRetries,
		httpClient: &http.Client{
			Timeout: cfg.ProviderTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// CreateSession opens a provider session seeded with the player's balance
func (c *Client) CreateSession(ctx context.Context, balance decimal.Decimal, currency string) (*models.ProviderSession, error) {
	query := url.Values{}
	query.Set("balance", balance.StringFixed(2))
	query.Set("currency", currency)
	query.Set("youtube_mode", "false")

	body, err := c.call(ctx, "create_session", http.MethodGet, "/session/create?"+query.Encode(), nil, nil)
	if err != nil {
		return nil, err
	}

	sessionID, _ := body["session_uuid"].(string)
	if sessionID == "" {
		return nil, fmt.Errorf("provider session response has no session_uuid")
	}
	return &models.ProviderSession{SessionUUID: sessionID, Raw: body}, nil
}

// Play asks the provider to run one round. It is sent exactly once: a retry
// after a lost response could make the provider play the round twice.
func (c *Client) Play(ctx context.Context, req *models.ProviderPlayRequest) (*models.ProviderPlayResponse, error) {
	var headers map[string]string
	if req.IdempotencyKey != "" {
		headers = map[string]string{"Idempotency-Key": req.IdempotencyKey}
	}

	body, err := c.call(ctx, "play", http.MethodPost, "/wallet/play", req, headers)
	if err != nil {
		return nil, err
	}

	multiplier, err := payoutMultiplier(body)
	if err != nil {
		return nil, err
	}
	return &models.ProviderPlayResponse{PayoutMultiplier: multiplier, Raw: body}, nil
}

// Authenticate relays a wallet authenticate callback
func (c *Client) Authenticate(ctx context.Context, payload map[string]any) (map[string]any, error) {
	return c.call(ctx, "authenticate", http.MethodPost, "/wallet/authenticate", payload, nil)
}

// EndRound relays a wallet end-round callback
func (c *Client) EndRound(ctx context.Context, payload map[string]any) (map[string]any, error) {
	return c.call(ctx, "end_round", http.MethodPost, "/wallet/end-round", payload, nil)
}

// Balance relays a wallet balance query, retrying transient failures
func (c *Client) Balance(ctx context.Context, payload map[string]any) (map[string]any, error) {
	var result map[string]any
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(max(c.maxRetries, 0))),
		ctx,
	)

	err := backoff.RetryNotify(func() error {
		body, err := c.call(ctx, "balance", http.MethodPost, "/wallet/balance", payload, nil)
		if err != nil {
			var statusErr *StatusError
			if errors.As(err, &statusErr) && statusErr.StatusCode < http.StatusInternalServerError {
				return backoff.Permanent(err)
			}
			return err
		}
		result = body
		return nil
	}, policy, func(err error, wait time.Duration) {
		log.WithError(err).WithField("wait", wait).Warn("Retrying provider balance call")
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) call(ctx context.Context, name, method, path string, payload any, headers map[string]string) (result map[string]any, err error) {
	started := time.Now()
	defer func() { metrics.ObserveProviderRequest(name, started, err) }()

	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s request: %w", name, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", name, err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.WithFields(log.Fields{
			"call":     name,
			"duration": time.Since(started),
		}).WithError(err).Warn("Provider request failed")
		return nil, fmt.Errorf("provider %s request failed: %w", name, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", name, err)
	}

	log.WithFields(log.Fields{
		"call":     name,
		"status":   resp.StatusCode,
		"duration": time.Since(started),
	}).Debug("Provider request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Call: name, StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
	}

	result = map[string]any{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return result, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", name, err)
	}
	return result, nil
}

// payoutMultiplier reads round.payoutMultiplier without going through float64
func payoutMultiplier(body map[string]any) (decimal.Decimal, error) {
	round, ok := body["round"].(map[string]any)
	if !ok {
		return decimal.Zero, fmt.Errorf("provider play response has no round")
	}

	switch v := round["payoutMultiplier"].(type) {
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		return decimal.NewFromString(v)
	default:
		return decimal.Zero, fmt.Errorf("provider play response has no payoutMultiplier")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
