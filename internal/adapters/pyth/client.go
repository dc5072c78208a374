package pyth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/roundwatch/internal/domain"
)

const (
	defaultHermesBase = "https://hermes.pyth.network"

	// DefaultFeedID is the ETH/USD feed.
	DefaultFeedID = "0xff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace"

	// Hermes public endpoint allows 30 req/10s per IP; stay well under.
	hermesRatePerSec = 2

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Quote is a decoded Hermes price.
type Quote struct {
	FeedID      string
	Price       float64
	PublishTime time.Time
}

// Client reads the latest price of one Pyth feed from Hermes.
// It implements ports.PriceSource.
type Client struct {
	http    *http.Client
	base    string
	feedID  string
	limiter *rate.Limiter
}

// NewClient builds a Hermes client. Empty base or feedID use the defaults.
func NewClient(base, feedID string) *Client {
	if base == "" {
		base = defaultHermesBase
	}
	if feedID == "" {
		feedID = DefaultFeedID
	}
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		base:    strings.TrimRight(base, "/"),
		feedID:  feedID,
		limiter: rate.NewLimiter(hermesRatePerSec, 2),
	}
}

type rawPrice struct {
	Price       string `json:"price"`
	Conf        string `json:"conf"`
	Expo        int    `json:"expo"`
	PublishTime int64  `json:"publish_time"`
}

type rawFeed struct {
	ID    string   `json:"id"`
	Price rawPrice `json:"price"`
}

// LatestPrice returns the current price of the configured feed.
func (c *Client) LatestPrice(ctx context.Context) (float64, error) {
	q, err := c.LatestQuote(ctx)
	if err != nil {
		return 0, err
	}
	return q.Price, nil
}

// LatestQuote returns the current quote of the configured feed.
// Non-positive prices are rejected with domain.ErrNoReferencePrice.
func (c *Client) LatestQuote(ctx context.Context) (Quote, error) {
	u := fmt.Sprintf("%s/api/latest_price_feeds?%s", c.base, url.Values{"ids[]": {c.feedID}}.Encode())

	var feeds []rawFeed
	if err := c.get(ctx, u, &feeds); err != nil {
		return Quote{}, fmt.Errorf("pyth.LatestQuote: %w", err)
	}

	want := normalizeID(c.feedID)
	for _, f := range feeds {
		if normalizeID(f.ID) != want {
			continue
		}
		q, err := decodeQuote(f)
		if err != nil {
			return Quote{}, fmt.Errorf("pyth.LatestQuote: %w", err)
		}
		return q, nil
	}
	return Quote{}, fmt.Errorf("pyth.LatestQuote: feed %s missing from response: %w", c.feedID, domain.ErrNoReferencePrice)
}

// decodeQuote applies price × 10^expo.
func decodeQuote(f rawFeed) (Quote, error) {
	base, err := strconv.ParseInt(f.Price.Price, 10, 64)
	if err != nil {
		return Quote{}, fmt.Errorf("parse price %q: %w", f.Price.Price, err)
	}
	price := float64(base) * math.Pow10(f.Price.Expo)
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return Quote{}, fmt.Errorf("invalid price %v: %w", price, domain.ErrNoReferencePrice)
	}
	return Quote{
		FeedID:      f.ID,
		Price:       price,
		PublishTime: time.Unix(f.Price.PublishTime, 0).UTC(),
	}, nil
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimPrefix(id, "0x"))
}

// get does a GET with rate limiting and retries on 429/5xx.
func (c *Client) get(ctx context.Context, u string, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries || ctx.Err() != nil {
				return fmt.Errorf("request failed after %d attempts: %w", attempt+1, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("hermes status %d after %d retries", resp.StatusCode, maxRetries)
			}
			slog.Warn("pyth: retrying hermes request", "status", resp.StatusCode, "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("hermes client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep waits with exponential backoff, respecting the context.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
