// Package webhook posts deployment events to HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/jsonutil"
)

// EventType names a deployment event.
type EventType string

const (
	EventDeployStarted   EventType = "deploy.started"
	EventDeployCompleted EventType = "deploy.completed"
	EventDeployFailed    EventType = "deploy.failed"
	EventAll             EventType = "*"
)

// Event is the JSON payload sent to hooks.
type Event struct {
	Event     EventType      `json:"event"`
	Timestamp string         `json:"timestamp"`
	RunID     string         `json:"run_id,omitempty"`
	Server    string         `json:"server,omitempty"`
	Ref       string         `json:"ref,omitempty"`
	Revision  string         `json:"revision,omitempty"`
	Deployer  string         `json:"deployer,omitempty"`
	DryRun    bool           `json:"dry_run,omitempty"`
	Error     string         `json:"error,omitempty"`
	Totals    map[string]int `json:"totals,omitempty"`
}

// Hook is one configured endpoint.
type Hook struct {
	URL     string      `json:"url,omitempty" yaml:"url" toml:"url"`
	Secret  string      `json:"secret,omitempty" yaml:"secret,omitempty" toml:"secret"`
	Events  []EventType `json:"events,omitempty" yaml:"events,omitempty" toml:"events"`
	Servers []string    `json:"servers,omitempty" yaml:"servers,omitempty" toml:"servers"`
}

// Matches reports whether the hook wants event for server. Empty Events or
// Servers match everything.
func (h Hook) Matches(event EventType, server string) bool {
	if len(h.Events) > 0 && !slices.Contains(h.Events, event) && !slices.Contains(h.Events, EventAll) {
		return false
	}
	return len(h.Servers) == 0 || server == "" || slices.Contains(h.Servers, server)
}

// Config is the webhooks block of the beam configuration.
type Config struct {
	Hooks      []Hook        `json:"hooks,omitempty" yaml:"hooks,omitempty" toml:"hooks"`
	Timeout    time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" toml:"timeout"`
	MaxRetries int           `json:"max_retries,omitempty" yaml:"max_retries,omitempty" toml:"max_retries"`
	RetryDelay time.Duration `json:"retry_delay,omitempty" yaml:"retry_delay,omitempty" toml:"retry_delay"`
}

// Defaults for a zero Config.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultRetryDelay = 2 * time.Second
)

// Client sends events to the configured hooks.
type Client struct {
	config Config
	http   *http.Client
	now    func() time.Time
}

// NewClient creates a client for cfg.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Client{
		config: cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}
}

// Enabled reports whether any hook is configured.
func (c *Client) Enabled() bool {
	return len(c.config.Hooks) > 0
}

// Send posts event to every matching hook. Every hook is tried; the
// returned error joins the failures.
func (c *Client) Send(ctx context.Context, event Event) error {
	if event.Timestamp == "" {
		event.Timestamp = c.now().UTC().Format(time.RFC3339)
	}

	var payload []byte
	var errs []error
	for _, hook := range c.config.Hooks {
		if !hook.Matches(event.Event, event.Server) {
			continue
		}
		if payload == nil {
			var err error
			if payload, err = jsonutil.CanonicalMarshal(event); err != nil {
				return fmt.Errorf("marshal event: %w", err)
			}
		}
		if err := c.deliver(ctx, hook, event.Event, payload); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", hook.URL, err))
		}
	}
	return errors.Join(errs...)
}

// deliver posts payload to hook, retrying on transport errors and non-2xx
// responses.
func (c *Client) deliver(ctx context.Context, hook Hook, event EventType, payload []byte) error {
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "beam-webhook/1.0")
		req.Header.Set("X-Beam-Event", string(event))
		if hook.Secret != "" {
			req.Header.Set("X-Beam-Signature", Sign(payload, hook.Secret))
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("http %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return lastErr
}

// Sign returns the HMAC-SHA256 signature header value for payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
