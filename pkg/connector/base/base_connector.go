// Package base provides the foundational BaseConnector that Hearth source
// connectors embed. It owns the shared transport (a pooled resty HTTP client
// with the 30-second request timeout convention), the rolling call counters
// consumed by the health tracker, and retry logic for transient failures.
//
// Connectors embed BaseConnector and implement the capability methods:
//
//	type ZillowConnector struct {
//	    *base.BaseConnector
//	}
//
//	func New(cfg *config.ConnectorConfig) *ZillowConnector {
//	    return &ZillowConnector{BaseConnector: base.NewBaseConnector(cfg)}
//	}
package base

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"sync"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/hearthdata/hearth/pkg/config"
	"github.com/hearthdata/hearth/pkg/connector/core"
	"github.com/hearthdata/hearth/pkg/errors"
	"github.com/hearthdata/hearth/pkg/logger"
)

// BaseConnector provides common functionality for all source connectors:
// identity, configuration, structured logging, the shared HTTP client, call
// counters, and retry handling.
type BaseConnector struct {
	cfg    *config.ConnectorConfig
	logger *zap.Logger
	client *resty.Client
	stats  core.CallStats
	retry  *RetryPolicy

	closed     bool
	closeMutex sync.Mutex
}

// NewBaseConnector creates a base connector from its configuration.
func NewBaseConnector(cfg *config.ConnectorConfig) *BaseConnector {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("Accept", "application/json")

	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &BaseConnector{
		cfg:    cfg,
		logger: logger.Get().With(zap.String("connector", cfg.Name)),
		client: client,
		retry:  NewRetryPolicy(cfg.RetryAttempts, cfg.RetryDelay),
	}
}

// Name returns the connector name
func (bc *BaseConnector) Name() string {
	return bc.cfg.Name
}

// Enabled reports whether the connector participates in routing
func (bc *BaseConnector) Enabled() bool {
	return bc.cfg.Enabled
}

// Authenticated reports whether credentials are configured
func (bc *BaseConnector) Authenticated() bool {
	return bc.cfg.Authenticated()
}

// Stats returns the mutable call counters for this connector
func (bc *BaseConnector) Stats() *core.CallStats {
	return &bc.stats
}

// Client returns the shared HTTP client
func (bc *BaseConnector) Client() *resty.Client {
	return bc.client
}

// Config returns the connector configuration
func (bc *BaseConnector) Config() *config.ConnectorConfig {
	return bc.cfg
}

// Logger returns the connector logger
func (bc *BaseConnector) Logger() *zap.Logger {
	return bc.logger
}

// ExecuteWithRetry executes a function with the configured retry policy,
// retrying only errors classified as retryable (timeout, rate limit,
// connection).
func (bc *BaseConnector) ExecuteWithRetry(ctx context.Context, fn func() error) error {
	return bc.retry.ExecuteWithCondition(ctx, fn, errors.IsRetryable)
}

// Close shuts down the connector
func (bc *BaseConnector) Close(ctx context.Context) error {
	bc.closeMutex.Lock()
	defer bc.closeMutex.Unlock()

	if bc.closed {
		return nil
	}

	bc.closed = true
	bc.logger.Info("connector closed")
	return nil
}

// ClassifyResponse converts a resty response or transport error into a typed
// error so counters and retry logic can distinguish timeouts and rate limits
// from plain source failures. A nil return means the call succeeded.
func ClassifyResponse(resp *resty.Response, err error) error {
	if err != nil {
		var netErr net.Error
		if stderrors.Is(err, context.DeadlineExceeded) || (stderrors.As(err, &netErr) && netErr.Timeout()) {
			return errors.Wrap(err, errors.ErrorTypeTimeout, "request timed out")
		}
		return errors.Wrap(err, errors.ErrorTypeConnection, "request failed")
	}

	switch {
	case resp.StatusCode() == http.StatusTooManyRequests:
		return errors.New(errors.ErrorTypeRateLimit, "rate limited by source")
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return errors.New(errors.ErrorTypeAuthentication, "authentication rejected by source")
	case resp.StatusCode() == http.StatusGatewayTimeout:
		return errors.New(errors.ErrorTypeTimeout, "upstream gateway timeout")
	case resp.IsError():
		return errors.New(errors.ErrorTypeSource, "source returned status "+resp.Status())
	}
	return nil
}
