// Shotcaster - Self-Hosted Upload and Screenshot Manager
// Copyright 2026 Shotcaster Contributors
// SPDX-License-Identifier: MIT
// https://github.com/shotcaster/shotcaster

package geo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/shotcaster/shotcaster/internal/logging"
	"github.com/shotcaster/shotcaster/internal/metrics"
)

// errRateLimited signals that the upstream refused the request (HTTP 429) or
// that the local request budget is exhausted. Callers stop the current batch
// and surface the degradation flag instead of retrying.
var errRateLimited = errors.New("geo upstream rate limited")

// batchEntry is one per-IP record in the upstream batch response.
type batchEntry struct {
	Status      string  `json:"status"` // "success" or "fail"
	Message     string  `json:"message"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	ISP         string  `json:"isp"`
	Query       string  `json:"query"` // IP address queried
}

// batchClient talks to the ip-api.com batch endpoint: up to 100 queries per
// POST, HTTP 429 when rate-limited. A client-side token bucket keeps requests
// inside the free-tier budget, and a circuit breaker sheds load when the
// upstream is failing.
type batchClient struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]batchEntry]
}

// newBatchClient creates an upstream client for the given endpoint.
// ratePerMinute is the request budget (ip-api.com free tier allows 45/min).
func newBatchClient(baseURL string, timeout time.Duration, ratePerMinute int) *batchClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if ratePerMinute <= 0 {
		ratePerMinute = 45
	}

	breaker := gobreaker.NewCircuitBreaker[[]batchEntry](gobreaker.Settings{
		Name:        "geo-upstream",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		// Rate limiting is the upstream protecting itself, not an outage;
		// it must not trip the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errRateLimited)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("geo upstream circuit breaker state change")
		},
	})

	return &batchClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(ratePerMinute)), ratePerMinute),
		breaker:    breaker,
	}
}

// resolve issues one upstream batch request for the given chunk of IPs.
// Returns errRateLimited when the local budget is spent or the upstream
// answers 429; any other failure is an ordinary error for the caller to
// swallow and log.
func (c *batchClient) resolve(ctx context.Context, ips []string) ([]batchEntry, error) {
	if !c.limiter.Allow() {
		metrics.GeoUpstreamRequests.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("local request budget exhausted: %w", errRateLimited)
	}

	entries, err := c.breaker.Execute(func() ([]batchEntry, error) {
		return c.post(ctx, ips)
	})
	if err != nil {
		switch {
		case errors.Is(err, errRateLimited):
			metrics.GeoUpstreamRequests.WithLabelValues("rate_limited").Inc()
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			metrics.GeoUpstreamRequests.WithLabelValues("rejected").Inc()
		default:
			metrics.GeoUpstreamRequests.WithLabelValues("failure").Inc()
		}
		return nil, err
	}

	metrics.GeoUpstreamRequests.WithLabelValues("success").Inc()
	return entries, nil
}

// post performs the actual batch POST and decodes the response.
func (c *batchClient) post(ctx context.Context, ips []string) ([]batchEntry, error) {
	body, err := json.Marshal(ips)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch request: %w", err)
	}

	url := c.baseURL + "?fields=status,message,country,countryCode,city,lat,lon,isp,query"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create batch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("batch request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	var entries []batchEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode batch response: %w", err)
	}

	return entries, nil
}
