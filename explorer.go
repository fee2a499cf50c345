package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/samber/lo"
	"golang.org/x/time/rate"
)

const (
	DefaultExplorerTimeout = 5 * time.Second
	DefaultExplorerRetries = 2
	// Etherscan free tier allows 5 calls per second per key.
	DefaultExplorerRateLimit = 5

	explorerRetryWaitMin = 100 * time.Millisecond
	explorerRetryWaitMax = 500 * time.Millisecond
)

// Explorer issues a single explorer API call and returns the decoded
// envelope. Deciding what the envelope status means is up to the caller.
type Explorer interface {
	Request(ctx context.Context, network NetworkConfig, params url.Values) (*Envelope, error)
}

// Envelope is the response wrapper shared by every Etherscan-family action.
type Envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// Err returns a *DomainError unless the explorer reported success.
func (e *Envelope) Err() error {
	if e.Status != "1" {
		return &DomainError{Message: e.Message}
	}
	return nil
}

type ExplorerConfig struct {
	Timeout  time.Duration
	RetryMax int
	// RateLimit is in requests per second per network; zero disables it.
	RateLimit float64
	Networks  []string
}

type ExplorerClient struct {
	client   *retryablehttp.Client
	timeout  time.Duration
	limiters map[string]*rate.Limiter
	log      *slog.Logger
}

func NewExplorerClient(log *slog.Logger, cfg ExplorerConfig) *ExplorerClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultExplorerTimeout
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = explorerRetryWaitMin
	client.RetryWaitMax = explorerRetryWaitMax
	client.Backoff = retryablehttp.LinearJitterBackoff
	client.HTTPClient.Timeout = timeout
	client.Logger = retryLogger{log: log}
	client.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			log.Warn("Retrying request to explorer",
				"action", req.URL.Query().Get("action"),
				"attempt", attempt,
			)
		}
	}
	// hand back the last response so a final 5xx is reported by status code
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	limiters := make(map[string]*rate.Limiter, len(cfg.Networks))
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		for _, name := range cfg.Networks {
			limiters[name] = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
		}
	}

	return &ExplorerClient{
		client:   client,
		timeout:  timeout,
		limiters: limiters,
		log:      log,
	}
}

func (c *ExplorerClient) Request(ctx context.Context, network NetworkConfig, params url.Values) (*Envelope, error) {
	action := params.Get("action")
	transportErr := func(err error) error {
		return &TransportError{Network: network.Name, Action: action, Err: redactAPIKey(err)}
	}

	// the timeout bounds the whole call, retries and rate limiting included
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if limiter, ok := c.limiters[network.Name]; ok {
		if err := limiter.Wait(ctx); err != nil {
			return nil, transportErr(err)
		}
	}

	query := url.Values{}
	for k, v := range params {
		query[k] = append([]string(nil), v...)
	}
	query.Set("apikey", network.APIKey)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, network.Endpoint()+"?"+query.Encode(), nil)
	if err != nil {
		return nil, transportErr(err)
	}

	t0 := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		observeExplorerRequestErr(network.Name, action, err, t0)
		return nil, transportErr(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		observeExplorerRequestCode(network.Name, action, resp.StatusCode, t0)
		return nil, transportErr(fmt.Errorf("unexpected status code %d", resp.StatusCode))
	}

	var envelope Envelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		observeExplorerRequest(network.Name, action, "decode_error", t0)
		return nil, transportErr(fmt.Errorf("failed to decode response: %w", err))
	}

	status := "ok"
	if envelope.Status != "1" {
		status = "domain_error"
	}
	observeExplorerRequest(network.Name, action, status, t0)
	c.log.Debug("Explorer request",
		"network", network.Name,
		"action", action,
		"address", params.Get("address"),
		"status", envelope.Status,
		"message", envelope.Message,
		"duration", time.Since(t0),
	)
	return &envelope, nil
}

var apiKeyParam = regexp.MustCompile(`(?i)(apikey=)[^&\s"]*`)

func redactQuery(s string) string {
	return apiKeyParam.ReplaceAllString(s, "${1}REDACTED")
}

// redactAPIKey removes the API key from the request URL that net/http
// embeds in transport errors.
func redactAPIKey(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &url.Error{Op: urlErr.Op, URL: redactQuery(urlErr.URL), Err: urlErr.Err}
	}
	if msg := err.Error(); apiKeyParam.MatchString(msg) {
		return errors.New(redactQuery(msg))
	}
	return err
}

// retryLogger is the retryablehttp.LeveledLogger for explorer calls. URLs
// and errors it is handed carry the API key, so values are redacted first.
type retryLogger struct {
	log *slog.Logger
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, redactValues(keysAndValues)...)
}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warn(msg, redactValues(keysAndValues)...)
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info(msg, redactValues(keysAndValues)...)
}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, redactValues(keysAndValues)...)
}

func redactValues(keysAndValues []interface{}) []any {
	return lo.Map(keysAndValues, func(v interface{}, _ int) any {
		switch v := v.(type) {
		case string:
			return redactQuery(v)
		case error:
			return redactAPIKey(v).Error()
		case fmt.Stringer:
			return redactQuery(v.String())
		default:
			return v
		}
	})
}
