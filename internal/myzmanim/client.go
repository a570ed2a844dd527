// Package myzmanim fetches zmanim from the MyZmanim HTTP API: postal code to
// location id resolution and per-date getDay payloads.
package myzmanim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/goccy/go-json"
	"github.com/maypok86/otter/v2"

	appLog "shulscreen/internal/log"
	"shulscreen/internal/metrics"
	"shulscreen/internal/model"
)

const (
	methodSearchPostal = "searchPostal"
	methodGetDay       = "getDay"
)

var (
	// ErrAPI is returned when the API answers with a non-empty ErrMsg.
	ErrAPI = errors.New("myzmanim api error")
	// ErrNetwork marks transport failures (DNS, connect, reset, timeout).
	ErrNetwork = errors.New("myzmanim network error")
	// ErrNoLocation is returned when searchPostal yields no LocationID.
	ErrNoLocation = errors.New("myzmanim searchPostal returned no LocationID")
)

// StatusError is a non-2xx HTTP answer.
type StatusError struct {
	Method string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("myzmanim %s: HTTP %d", e.Method, e.Code)
}

func (e *StatusError) retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// Options configures a Client. Zero values get defaults in New.
type Options struct {
	Endpoint string
	User     string
	Key      string
	Coding   string
	Language string

	// PostalQuery is the postal code Days resolves to a location id.
	PostalQuery string

	Timeout time.Duration
	// DayTTL bounds how long a fetched day stays in memory. Zero disables the
	// day cache.
	DayTTL time.Duration

	Attempts   uint
	RetryDelay time.Duration
	// Concurrency caps parallel getDay calls in Days.
	Concurrency int

	HTTPClient *http.Client
	// Store keeps resolved location ids across restarts. Nil means every
	// process start asks searchPostal once.
	Store   LocationStore
	Metrics *metrics.Manager
}

// Client talks to the MyZmanim engine. It is safe for concurrent use.
type Client struct {
	endpoint string
	user     string
	key      string
	coding   string
	language string
	postal   string

	attempts    uint
	delay       time.Duration
	concurrency int

	http    *http.Client
	store   LocationStore
	locs    *otter.Cache[string, string]
	days    *otter.Cache[dayKey, model.Day]
	metrics *metrics.Manager
}

// New creates a Client.
func New(opts Options) *Client {
	c := &Client{
		endpoint:    strings.TrimRight(opts.Endpoint, "/"),
		user:        opts.User,
		key:         opts.Key,
		coding:      opts.Coding,
		language:    opts.Language,
		postal:      opts.PostalQuery,
		attempts:    opts.Attempts,
		delay:       opts.RetryDelay,
		concurrency: opts.Concurrency,
		http:        opts.HTTPClient,
		store:       opts.Store,
		locs:        otter.Must(&otter.Options[string, string]{MaximumSize: 64}),
		metrics:     opts.Metrics,
	}
	if c.coding == "" {
		c.coding = "JS"
	}
	if c.language == "" {
		c.language = "en"
	}
	if c.attempts == 0 {
		c.attempts = 3
	}
	if c.delay <= 0 {
		c.delay = 500 * time.Millisecond
	}
	if c.concurrency <= 0 {
		c.concurrency = 4
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if opts.DayTTL > 0 {
		c.days = newDayCache(opts.DayTTL)
	}
	return c
}

// auth returns the form fields every call carries.
func (c *Client) auth() url.Values {
	v := url.Values{}
	v.Set("User", c.user)
	v.Set("Key", c.key)
	v.Set("Coding", c.coding)
	return v
}

// post sends a form-encoded POST to endpoint/method and decodes the JSON
// answer into out. Network failures, 5xx and 429 are retried with backoff;
// other statuses and API-level errors are not.
func (c *Client) post(ctx context.Context, method string, form url.Values, out any) error {
	start := time.Now()
	target := c.endpoint + "/" + method
	body := form.Encode()

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(body))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.Header.Set("Accept", "application/json")

			resp, err := c.http.Do(req)
			if err != nil {
				if ctx.Err() != nil {
					return retry.Unrecoverable(ctx.Err())
				}
				return fmt.Errorf("%w: %w", ErrNetwork, err)
			}
			defer resp.Body.Close()

			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("%w: read body: %w", ErrNetwork, err)
			}

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				se := &StatusError{Method: method, Code: resp.StatusCode}
				if se.retryable() {
					return se
				}
				return retry.Unrecoverable(se)
			}

			var envelope struct {
				ErrMsg string `json:"ErrMsg"`
			}
			if err := json.Unmarshal(data, &envelope); err != nil {
				return retry.Unrecoverable(fmt.Errorf("myzmanim %s: decode: %w", method, err))
			}
			if envelope.ErrMsg != "" {
				return retry.Unrecoverable(fmt.Errorf("%w: %s", ErrAPI, envelope.ErrMsg))
			}
			if err := json.Unmarshal(data, out); err != nil {
				return retry.Unrecoverable(fmt.Errorf("myzmanim %s: decode: %w", method, err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.MaxDelay(10*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			appLog.Info("myzmanim: retrying", "method", method, "attempt", n+1, "error", err.Error())
		}),
	)

	c.metrics.APICall(method, err, time.Since(start))
	if err != nil {
		appLog.Error("myzmanim: request failed", err, "method", method, "duration", time.Since(start))
		return err
	}
	appLog.Debug("myzmanim: request ok", "method", method, "duration", time.Since(start))
	return nil
}
