package core

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hearthdata/hearth/pkg/errors"
	"github.com/hearthdata/hearth/pkg/models"
)

// Operation names the connector capabilities, used for metrics labels and
// failover diagnostics.
type Operation string

const (
	OpSearchProperties   Operation = "search_properties"
	OpGetPropertyDetails Operation = "get_property_details"
	OpGetMarketTrends    Operation = "get_market_trends"
)

// RawRecord is a source-specific payload prior to standardization.
type RawRecord = map[string]interface{}

// SearchOptions narrows a property search.
type SearchOptions struct {
	MinPrice     float64
	MaxPrice     float64
	MinBedrooms  int
	MinBathrooms float64
	PropertyType string
	Limit        int
}

// TrendOptions controls a market trend query.
type TrendOptions struct {
	PeriodMonths int
}

// Connector is the capability interface every upstream data source adapter
// implements. Implementations own their transport and field mapping; callers
// interact only through this contract.
//
// A single Connector instance must not be shared between two routers: its
// call counters are updated without additional locking on the assumption of
// one owning router (single-owner invariant).
type Connector interface {
	// Metadata
	Name() string
	Enabled() bool
	Authenticated() bool

	// Capabilities
	SearchProperties(ctx context.Context, location string, opts *SearchOptions) ([]RawRecord, error)
	GetPropertyDetails(ctx context.Context, externalID string) (RawRecord, error)
	GetMarketTrends(ctx context.Context, location string, opts *TrendOptions) (RawRecord, error)

	// StandardizeProperty maps a source-specific payload into the canonical
	// PropertyRecord shape, preserving the original payload in Metadata.
	StandardizeProperty(raw RawRecord) (*models.PropertyRecord, error)

	// Stats exposes the mutable call counters consumed by the health tracker.
	Stats() *CallStats

	// Lifecycle
	Close(ctx context.Context) error
}

// CallStats holds the rolling call counters for one connector. Counters are
// updated by the owning router after every attempt and reduced to a health
// status on read. Atomic access keeps reads safe from other goroutines
// (status endpoints, sync snapshots) without a lock.
type CallStats struct {
	requests          int64
	errors            int64
	timeouts          int64
	rateLimitHits     int64
	totalResponseTime int64 // nanoseconds
}

// RecordAttempt registers one call attempt with its latency and outcome.
// Timeout and rate-limit errors additionally bump their dedicated counters.
func (s *CallStats) RecordAttempt(latency time.Duration, err error) {
	atomic.AddInt64(&s.requests, 1)
	atomic.AddInt64(&s.totalResponseTime, int64(latency))
	if err == nil {
		return
	}
	atomic.AddInt64(&s.errors, 1)
	if errors.IsType(err, errors.ErrorTypeTimeout) {
		atomic.AddInt64(&s.timeouts, 1)
	}
	if errors.IsType(err, errors.ErrorTypeRateLimit) {
		atomic.AddInt64(&s.rateLimitHits, 1)
	}
}

// Requests returns the total number of call attempts.
func (s *CallStats) Requests() int64 { return atomic.LoadInt64(&s.requests) }

// Errors returns the total number of failed attempts.
func (s *CallStats) Errors() int64 { return atomic.LoadInt64(&s.errors) }

// Timeouts returns the number of attempts that failed with a timeout.
func (s *CallStats) Timeouts() int64 { return atomic.LoadInt64(&s.timeouts) }

// RateLimitHits returns the number of attempts rejected by rate limiting.
func (s *CallStats) RateLimitHits() int64 { return atomic.LoadInt64(&s.rateLimitHits) }

// TotalResponseTime returns the cumulative latency across all attempts.
func (s *CallStats) TotalResponseTime() time.Duration {
	return time.Duration(atomic.LoadInt64(&s.totalResponseTime))
}
