// Package upstream implements the rate-limited price-feed client (spec.md
// component A). Grounded on the teacher's
// internal/client/polymarket/clob.Client (typed doRequest helper over a
// shared *http.Client) and on original_source/backend/utils/dump_engine.py's
// fetch_with_fallback (primary endpoint with an optional secondary base
// URL).
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"marketwatch/internal/models"
	"marketwatch/internal/retry"
)

// Error kinds per spec.md §4.A.
var (
	ErrUnavailable = errors.New("upstream unavailable")
	ErrMalformed   = errors.New("upstream malformed response")
	ErrRateLimited = errors.New("upstream rate limited")
)

const maxSanePrice = int64(1) << 48

// LatestEntry is one /latest record: most-recent instant-sell/instant-buy
// prices and their observation times.
type LatestEntry struct {
	Low     *int64
	LowTime *int64
	High    *int64
	HighTime *int64
}

// WindowEntry is one /5m or /1h record.
type WindowEntry struct {
	AvgHigh      *int64
	HighVolume   int64
	AvgLow       *int64
	LowVolume    int64
}

// Volume is the combined per-window trade count, matching the original's
// "(highPriceVolume or 0) + (lowPriceVolume or 0)".
func (w WindowEntry) Volume() int64 { return w.HighVolume + w.LowVolume }

// MappingEntry is one /mapping record.
type MappingEntry struct {
	ID       int64
	Name     string
	Members  bool
	Limit    *int
	Examine  *string
}

// Client is a rate-limited, retrying HTTP client for the upstream price
// feed.
type Client struct {
	http       *http.Client
	baseURL    string
	fallback   string
	userAgent  string
	retryPolicy retry.Policy

	latestLimiter *rate.Limiter
	windowLimiter *rate.Limiter
}

// New builds a Client. ingestPeriod calibrates the /latest limiter;
// windowPeriod (typically 5 minutes) calibrates /5m and /1h, per §4.A
// ("the client never exceeds one call per endpoint per configured period
// plus a small tolerance").
func New(httpClient *http.Client, baseURL, fallbackURL, userAgent string, ingestPeriod, windowPeriod time.Duration, retryPolicy retry.Policy) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	if ingestPeriod <= 0 {
		ingestPeriod = time.Minute
	}
	if windowPeriod <= 0 {
		windowPeriod = 5 * time.Minute
	}
	return &Client{
		http:        httpClient,
		baseURL:     baseURL,
		fallback:    fallbackURL,
		userAgent:   userAgent,
		retryPolicy: retryPolicy,
		// Burst of 2 tolerates the "small tolerance" spec.md allows.
		latestLimiter: rate.NewLimiter(rate.Every(ingestPeriod), 2),
		windowLimiter: rate.NewLimiter(rate.Every(windowPeriod), 2),
	}
}

func isRetryableStatus(status int) bool {
	return status >= 500 && status < 600
}

func (c *Client) doGET(ctx context.Context, limiter *rate.Limiter, path string) ([]byte, error) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
	}

	urls := []string{c.baseURL + path}
	if c.fallback != "" {
		urls = append(urls, c.fallback+path)
	}

	var body []byte
	var lastErr error
	for _, url := range urls {
		err := retry.Do(ctx, c.retryPolicy, func(err error) bool {
			var he *httpStatusError
			if errors.As(err, &he) {
				return isRetryableStatus(he.Status)
			}
			return true // network errors are retryable
		}, func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			req.Header.Set("User-Agent", c.userAgent)
			req.Header.Set("Accept", "application/json")
			resp, err := c.http.Do(req)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			defer resp.Body.Close()
			b, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return &httpStatusError{Status: resp.StatusCode, Body: string(b)}
			}
			body = b
			return nil
		})
		if err == nil {
			return body, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

type httpStatusError struct {
	Status int
	Body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("upstream http %d", e.Status)
}

// normalizePrice truncates absurd values (negative, or > 2^48) to "absent",
// per §4.A.
func normalizePrice(v *int64) *int64 {
	if v == nil {
		return nil
	}
	if *v < 0 || *v > maxSanePrice {
		return nil
	}
	return v
}

// FetchLatest fetches /latest and returns a map of item ID to LatestEntry.
func (c *Client) FetchLatest(ctx context.Context) (map[models.ItemID]LatestEntry, int64, error) {
	body, err := c.doGET(ctx, c.latestLimiter, "/latest")
	if err != nil {
		return nil, 0, err
	}
	var raw struct {
		Data map[string]struct {
			High     *int64 `json:"high"`
			HighTime *int64 `json:"highTime"`
			Low      *int64 `json:"low"`
			LowTime  *int64 `json:"lowTime"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	out := make(map[models.ItemID]LatestEntry, len(raw.Data))
	for idStr, v := range raw.Data {
		id, ok := parseItemID(idStr)
		if !ok {
			continue
		}
		out[id] = LatestEntry{
			Low:      normalizePrice(v.Low),
			LowTime:  v.LowTime,
			High:     normalizePrice(v.High),
			HighTime: v.HighTime,
		}
	}
	return out, time.Now().Unix(), nil
}

func (c *Client) fetchWindow(ctx context.Context, path string) (map[models.ItemID]WindowEntry, int64, error) {
	body, err := c.doGET(ctx, c.windowLimiter, path)
	if err != nil {
		return nil, 0, err
	}
	var raw struct {
		Data map[string]struct {
			AvgHighPrice    *int64 `json:"avgHighPrice"`
			HighPriceVolume int64  `json:"highPriceVolume"`
			AvgLowPrice     *int64 `json:"avgLowPrice"`
			LowPriceVolume  int64  `json:"lowPriceVolume"`
		} `json:"data"`
		Timestamp int64 `json:"timestamp"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	out := make(map[models.ItemID]WindowEntry, len(raw.Data))
	for idStr, v := range raw.Data {
		id, ok := parseItemID(idStr)
		if !ok {
			continue
		}
		out[id] = WindowEntry{
			AvgHigh:    normalizePrice(v.AvgHighPrice),
			HighVolume: v.HighPriceVolume,
			AvgLow:     normalizePrice(v.AvgLowPrice),
			LowVolume:  v.LowPriceVolume,
		}
	}
	ts := raw.Timestamp
	if ts == 0 {
		ts = time.Now().Unix()
	}
	return out, ts, nil
}

// FetchFiveMinute fetches /5m.
func (c *Client) FetchFiveMinute(ctx context.Context) (map[models.ItemID]WindowEntry, int64, error) {
	return c.fetchWindow(ctx, "/5m")
}

// FetchOneHour fetches /1h.
func (c *Client) FetchOneHour(ctx context.Context) (map[models.ItemID]WindowEntry, int64, error) {
	return c.fetchWindow(ctx, "/1h")
}

// FetchMapping fetches /mapping, the item catalog feed.
func (c *Client) FetchMapping(ctx context.Context) ([]models.ItemMeta, error) {
	body, err := c.doGET(ctx, nil, "/mapping")
	if err != nil {
		return nil, err
	}
	var raw []struct {
		ID      int64   `json:"id"`
		Name    string  `json:"name"`
		Members bool    `json:"members"`
		Limit   *int    `json:"limit"`
		Examine *string `json:"examine"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	out := make([]models.ItemMeta, 0, len(raw))
	for _, v := range raw {
		m := models.ItemMeta{
			ID:      models.ItemID(v.ID),
			Name:    v.Name,
			Members: v.Members,
		}
		if v.Limit != nil {
			m.BuyLimit = *v.Limit
		}
		if v.Examine != nil {
			m.Examine = *v.Examine
		}
		out = append(out, m)
	}
	return out, nil
}

func parseItemID(s string) (models.ItemID, bool) {
	var n int64
	_, err := fmt.Sscanf(s, "%d", &n)
	if err != nil || n <= 0 {
		return 0, false
	}
	return models.ItemID(n), true
}
