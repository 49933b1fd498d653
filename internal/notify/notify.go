// Package notify is the outbound payload client: it delivers templated
// messages to the messaging endpoint and probes the monitored service.
// Failures are reported to the caller as errors and recorded as ERROR
// executions; they are never fatal to the schedule that triggered them.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const maxErrorBody = 512

// Config holds the outbound endpoints and client limits.
type Config struct {
	// MessageURL receives template-message POSTs.
	MessageURL string

	// MonitorURL receives health-check POSTs.
	MonitorURL string

	// LanguageCode is the fixed locale sent with every message.
	LanguageCode string

	// Timeout bounds each outbound request.
	Timeout time.Duration

	// RatePerSecond and Burst throttle outbound calls. Zero disables
	// throttling.
	RatePerSecond float64
	Burst         int
}

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.LanguageCode == "" {
		c.LanguageCode = "es_mx"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
}

// Client posts payloads to the configured endpoints.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a Client. httpClient may be nil, in which case a
// client with the configured timeout is used.
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	cfg.defaults()
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst)
	}

	return &Client{cfg: cfg, http: httpClient, limiter: limiter, logger: logger}
}

// SendTemplate delivers one templated message to a chat. The chat id is
// sent as an integer form field; a non-numeric id is rejected before any
// I/O. A non-200 response is an error carrying the response body.
func (c *Client) SendTemplate(ctx context.Context, chatID, templateName, namespace string) error {
	chat, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return fmt.Errorf("notify: chat id %q is not numeric: %w", chatID, err)
	}

	form := url.Values{
		"chat":          {strconv.FormatInt(chat, 10)},
		"name_space":    {namespace},
		"element_name":  {templateName},
		"language_code": {c.cfg.LanguageCode},
	}
	return c.postForm(ctx, c.cfg.MessageURL, form)
}

// CheckService probes the monitored service endpoint.
func (c *Client) CheckService(ctx context.Context) error {
	form := url.Values{"testing": {"True"}}
	return c.postForm(ctx, c.cfg.MonitorURL, form)
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) error {
	if endpoint == "" {
		return fmt.Errorf("notify: no endpoint configured")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("notify: rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post %s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("notify: endpoint returned %d: %s", resp.StatusCode,
			strings.TrimSpace(string(body)))
	}
	return nil
}
