// Package wallet implements ports.Wallet over the custodial backend's JSON HTTP API.
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/ussdflow/internal/logging"
	"github.com/aretw0/ussdflow/pkg/domain"
	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
)

const (
	// DefaultTimeout bounds a single backend call.
	DefaultTimeout = 5 * time.Second
	// DefaultMaxTries applies to read operations only.
	DefaultMaxTries = 3

	maxResponseBytes = 64 << 10
)

// StatusError reports a non-success HTTP status from the backend.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("wallet backend returned status %d", e.Code)
}

// Client talks to the wallet backend.
type Client struct {
	baseURL  string
	http     *http.Client
	maxTries uint
	backoff  func() backoff.BackOff
	logger   *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-call timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithMaxTries sets how many times a balance read is attempted.
func WithMaxTries(n uint) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTries = n
		}
	}
}

// WithBackOff overrides the retry schedule.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Client) {
		c.backoff = fn
	}
}

// WithLogger configures a logger for the Client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a wallet client rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: DefaultTimeout},
		maxTries: DefaultMaxTries,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = time.Second
			return b
		},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do implements ports.Wallet.
// Balance reads are retried on transport and 5xx failures. Transfers are sent
// once; the idempotency key lets the backend drop duplicates from gateway retries.
func (c *Client) Do(ctx context.Context, req domain.WalletRequest) (domain.WalletResponse, error) {
	if req.Operation == domain.WalletTransfer && req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return domain.WalletResponse{}, fmt.Errorf("marshal wallet request: %w", err)
	}

	tries := uint(1)
	if req.Operation == domain.WalletBalance {
		tries = c.maxTries
	}

	attempt := 0
	op := func() (domain.WalletResponse, error) {
		attempt++
		resp, err := c.send(ctx, req, body)
		if err != nil {
			c.logger.Warn("Wallet call failed",
				"operation", req.Operation,
				"attempt", attempt,
				"err", err,
			)
		}
		return resp, err
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(c.backoff()),
		backoff.WithMaxTries(tries),
	)
}

func (c *Client) send(ctx context.Context, req domain.WalletRequest, body []byte) (domain.WalletResponse, error) {
	url := c.baseURL + "/v1/" + string(req.Operation)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.WalletResponse{}, backoff.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return domain.WalletResponse{}, backoff.Permanent(ctx.Err())
		}
		return domain.WalletResponse{}, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return domain.WalletResponse{}, err
	}

	switch {
	case httpResp.StatusCode >= http.StatusInternalServerError:
		return domain.WalletResponse{}, &StatusError{Code: httpResp.StatusCode}
	case httpResp.StatusCode >= http.StatusBadRequest && len(bytes.TrimSpace(raw)) == 0:
		return domain.WalletResponse{}, backoff.Permanent(&StatusError{Code: httpResp.StatusCode})
	}

	// 4xx responses carrying a wallet envelope are business refusals.
	var resp domain.WalletResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.WalletResponse{}, backoff.Permanent(fmt.Errorf("decode wallet response: %w", err))
	}
	if !resp.Ok && resp.ErrorCode == "" {
		if httpResp.StatusCode >= http.StatusBadRequest {
			return domain.WalletResponse{}, backoff.Permanent(&StatusError{Code: httpResp.StatusCode})
		}
		return domain.WalletResponse{}, backoff.Permanent(errors.New("wallet refusal without error code"))
	}
	return resp, nil
}
