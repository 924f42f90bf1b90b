// Package explorer fetches verified contract source from an
// Etherscan-compatible API. The client carries a token-bucket rate limiter,
// a circuit breaker, bounded retries with backoff and a daily request
// budget. API failure or an unverified contract never aborts a run: both
// map to the "source unavailable" path and the risk scorer applies its
// explicit neutral default.
package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/chainops/launchgate/internal/domain"
)

// Config bounds the client's traffic. Etherscan's free tier allows 5 rps;
// the default keeps headroom under it.
type Config struct {
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"`
	RPS          float64       `yaml:"rps"`
	Burst        int           `yaml:"burst"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	Timeout      time.Duration `yaml:"timeout"`
	DailyBudget  int64         `yaml:"daily_budget"`
	// MaxBodyBytes caps how much of a response is read, guarding against a
	// misbehaving endpoint streaming an unbounded body.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:      "https://api.etherscan.io/api",
		RPS:          4,
		Burst:        2,
		MaxRetries:   3,
		RetryBackoff: 500 * time.Millisecond,
		Timeout:      10 * time.Second,
		DailyBudget:  10000,
		MaxBodyBytes: 4 << 20,
	}
}

// Source is the verified-source lookup result. Verified false means the
// explorer has no source for the address; that is a normal outcome, not an
// error.
type Source struct {
	Verified     bool
	ContractName string
	Code         string
}

// Client is the Etherscan-compatible API client.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	used    atomic.Int64
}

func NewClient(cfg Config) *Client {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "explorer",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("explorer circuit state change")
		},
	})
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		breaker: breaker,
	}
}

// etherscan envelope: status "1" is success, "0" with message NOTOK covers
// both errors and unverified contracts.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type sourceResult struct {
	SourceCode   string `json:"SourceCode"`
	ContractName string `json:"ContractName"`
}

// ContractSource fetches verified source for a contract address. The address
// is normalized before use; the explorer expects the 0x prefix back.
func (c *Client) ContractSource(ctx context.Context, address string) (*Source, error) {
	addr := domain.NormalizeAddress(address)

	q := url.Values{}
	q.Set("module", "contract")
	q.Set("action", "getsourcecode")
	q.Set("address", "0x"+addr)
	if c.cfg.APIKey != "" {
		q.Set("apikey", c.cfg.APIKey)
	}

	body, err := c.get(ctx, c.cfg.BaseURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode explorer response: %w", err)
	}
	if env.Status != "1" {
		// NOTOK covers rate limits and unknown addresses alike; the scorer
		// treats all of them as source unavailable.
		log.Debug().Str("address", addr).Str("message", env.Message).Msg("explorer returned NOTOK")
		return &Source{Verified: false}, nil
	}

	var results []sourceResult
	if err := json.Unmarshal(env.Result, &results); err != nil {
		return nil, fmt.Errorf("decode source result: %w", err)
	}
	if len(results) == 0 || results[0].SourceCode == "" {
		return &Source{Verified: false}, nil
	}
	return &Source{
		Verified:     true,
		ContractName: results[0].ContractName,
		Code:         results[0].SourceCode,
	}, nil
}

// get runs one budgeted, rate-limited, breaker-guarded GET with bounded
// retries. Retries apply to transport errors and 5xx/429 responses only.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	if c.cfg.DailyBudget > 0 && c.used.Load() >= c.cfg.DailyBudget {
		return nil, fmt.Errorf("explorer daily budget of %d requests exhausted", c.cfg.DailyBudget)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.RetryBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.doOnce(ctx, rawURL)
		})
		if err == nil {
			c.used.Add(1)
			return result.([]byte), nil
		}
		lastErr = err
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("explorer circuit open: %w", err)
		}
		var re *retryableError
		if !errors.As(err, &re) {
			return nil, err
		}
		log.Debug().Err(err).Int("attempt", attempt+1).Msg("explorer request retrying")
	}
	return nil, fmt.Errorf("explorer request failed after %d attempts: %w", c.cfg.MaxRetries+1, lastErr)
}

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func (c *Client) doOnce(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &retryableError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &retryableError{err: fmt.Errorf("explorer HTTP %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("explorer HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes))
	if err != nil {
		return nil, &retryableError{err: err}
	}
	return body, nil
}
