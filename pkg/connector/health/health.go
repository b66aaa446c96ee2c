// Package health reduces a connector's rolling call counters to a derived
// status and error rate. Nothing here is cached: every Evaluate call
// recomputes the view from the live counters, so readers always see the
// current state.
package health

import (
	"time"

	"github.com/hearthdata/hearth/pkg/connector/core"
)

// Status represents the derived health of a connector
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

// Error-rate thresholds for status classification.
const (
	criticalErrorRate = 0.20
	degradedErrorRate = 0.05
)

// Snapshot is a point-in-time health view of one connector. It feeds
// operator dashboards and priority tooling; the failover router does not
// consult it when ordering attempts.
type Snapshot struct {
	Source            string    `json:"source"`
	Status            Status    `json:"status"`
	ErrorRate         float64   `json:"error_rate"`
	AvgResponseTimeMS float64   `json:"avg_response_time_ms"`
	Requests          int64     `json:"requests"`
	Errors            int64     `json:"errors"`
	Timeouts          int64     `json:"timeouts"`
	RateLimitHits     int64     `json:"rate_limit_hits"`
	CheckedAt         time.Time `json:"checked_at"`
}

// Evaluate computes the current health snapshot for a connector from its
// call counters. An unauthenticated connector is always critical regardless
// of its counters; otherwise the status follows the error rate: above 20%
// critical, above 5% degraded, else healthy. A connector with no requests
// yet has an error rate of zero.
func Evaluate(c core.Connector) Snapshot {
	stats := c.Stats()
	snap := Snapshot{
		Source:        c.Name(),
		Requests:      stats.Requests(),
		Errors:        stats.Errors(),
		Timeouts:      stats.Timeouts(),
		RateLimitHits: stats.RateLimitHits(),
		CheckedAt:     time.Now().UTC(),
	}

	if snap.Requests > 0 {
		snap.ErrorRate = float64(snap.Errors) / float64(snap.Requests)
		snap.AvgResponseTimeMS = float64(stats.TotalResponseTime().Milliseconds()) / float64(snap.Requests)
	}

	snap.Status = classify(snap.ErrorRate, c.Authenticated())
	return snap
}

func classify(errorRate float64, authenticated bool) Status {
	if !authenticated {
		return StatusCritical
	}
	switch {
	case errorRate > criticalErrorRate:
		return StatusCritical
	case errorRate > degradedErrorRate:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}
