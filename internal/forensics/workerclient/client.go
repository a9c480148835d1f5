// Package workerclient implements optional HTTP offload of the fusion
// and anomaly phases to a remote worker.
package workerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/sawpanic/forensics-shadow/internal/forensics/domain"
)

const offloadTimeout = 8 * time.Second

// Client offloads fusion/anomaly computation to a remote worker,
// falling back to local compute on any failure.
type Client struct {
	baseURL      string
	sharedSecret string
	httpClient   *http.Client
	breaker      *gobreaker.CircuitBreaker
	limiter      *rate.Limiter
}

// New constructs a worker Client. baseURL empty disables offload
// entirely (callers should check Enabled()).
func New(baseURL, sharedSecret string) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "forensics-worker",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return &Client{
		baseURL:      baseURL,
		sharedSecret: sharedSecret,
		httpClient:   &http.Client{Timeout: offloadTimeout},
		breaker:      breaker,
		limiter:      rate.NewLimiter(rate.Limit(5), 10),
	}
}

// Enabled reports whether a worker URL is configured.
func (c *Client) Enabled() bool { return c != nil && c.baseURL != "" }

type offloadRequest struct {
	Domain  string          `json:"domain"`
	Signals []domain.Signal `json:"signals"`
	Alpha   float64         `json:"alpha"`
}

type fuseResponse struct {
	FusedSignals []domain.FusedSignal `json:"fused_signals"`
}

type anomalyResponse struct {
	Anomalies []domain.CalibratedAnomaly `json:"anomalies"`
}

// Fuse attempts remote fusion. ok=false means the caller must fall
// back to the local implementation (worker disabled, rate-limited,
// breaker open, timed out, or returned a malformed payload).
func (c *Client) Fuse(ctx context.Context, dom string, signals []domain.Signal, alpha float64) ([]domain.FusedSignal, bool) {
	if !c.Enabled() {
		return nil, false
	}
	var resp fuseResponse
	if err := c.call(ctx, "/internal/forensics/v1/fuse", offloadRequest{Domain: dom, Signals: signals, Alpha: alpha}, &resp); err != nil {
		return nil, false
	}
	return resp.FusedSignals, true
}

// Anomaly attempts remote anomaly detection, mirroring Fuse.
func (c *Client) Anomaly(ctx context.Context, dom string, signals []domain.Signal, alpha float64) ([]domain.CalibratedAnomaly, bool) {
	if !c.Enabled() {
		return nil, false
	}
	var resp anomalyResponse
	if err := c.call(ctx, "/internal/forensics/v1/anomaly", offloadRequest{Domain: dom, Signals: signals, Alpha: alpha}, &resp); err != nil {
		return nil, false
	}
	return resp.Anomalies, true
}

func (c *Client) call(ctx context.Context, path string, reqBody offloadRequest, out interface{}) error {
	if !c.limiter.Allow() {
		return fmt.Errorf("worker offload rate limited")
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, offloadTimeout)
		defer cancel()

		buf, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal worker request: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
		if err != nil {
			return nil, fmt.Errorf("build worker request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.sharedSecret != "" {
			httpReq.Header.Set("X-Forensics-Worker-Secret", c.sharedSecret)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("worker request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("worker returned status %d", resp.StatusCode)
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(out); decodeErr != nil {
			return nil, fmt.Errorf("decode worker response: %w", decodeErr)
		}
		return nil, nil
	})
	return err
}
