// Package router implements failover routing of property-data requests
// across multiple source connectors. A logical operation is attempted on the
// primary connector first, then on every remaining enabled connector in
// registration order until one succeeds. Attempt ordering deliberately
// ignores health status so behavior stays predictable under partial outages;
// health feeds dashboards, not routing.
package router

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hearthdata/hearth/pkg/connector/core"
	"github.com/hearthdata/hearth/pkg/errors"
	"github.com/hearthdata/hearth/pkg/logger"
	"github.com/hearthdata/hearth/pkg/metrics"
	"github.com/hearthdata/hearth/pkg/models"
)

// Router holds an ordered set of connectors and exposes the same capability
// surface, retrying across sources on failure. Construct one per process and
// inject it; a connector instance must belong to exactly one router so its
// counters have a single writer.
type Router struct {
	connectors []core.Connector // registration order
	byName     map[string]core.Connector
	primary    string
	logger     *zap.Logger
}

// New creates a router over the given connectors. The connectors' argument
// order is the registration order used for fallback attempts. If the named
// primary is absent or disabled the router deterministically falls back to
// the lexicographically-first enabled connector, so two processes with the
// same connector set always agree on the primary.
func New(primary string, connectors ...core.Connector) (*Router, error) {
	if len(connectors) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "router requires at least one connector")
	}

	r := &Router{
		connectors: connectors,
		byName:     make(map[string]core.Connector, len(connectors)),
		logger:     logger.Get().With(zap.String("component", "failover_router")),
	}
	for _, c := range connectors {
		if _, dup := r.byName[c.Name()]; dup {
			return nil, errors.New(errors.ErrorTypeConfig, "duplicate connector name: "+c.Name())
		}
		r.byName[c.Name()] = c
	}

	r.primary = r.resolvePrimary(primary)
	if r.primary == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "no enabled connectors available")
	}

	r.logger.Info("router initialized",
		zap.String("primary", r.primary),
		zap.Int("connectors", len(connectors)))
	return r, nil
}

// resolvePrimary returns the effective primary connector name. Fallback is
// the lexicographically-first enabled connector; determinism here is
// load-bearing for multi-process deployments.
func (r *Router) resolvePrimary(requested string) string {
	if c, ok := r.byName[requested]; ok && c.Enabled() {
		return requested
	}

	fallback := ""
	for _, c := range r.connectors {
		if !c.Enabled() {
			continue
		}
		if fallback == "" || c.Name() < fallback {
			fallback = c.Name()
		}
	}

	if fallback != "" && requested != "" {
		r.logger.Warn("configured primary unavailable, falling back",
			zap.String("requested", requested),
			zap.String("fallback", fallback))
	}
	return fallback
}

// Primary returns the effective primary connector name.
func (r *Router) Primary() string {
	return r.primary
}

// Connectors returns the connectors in registration order.
func (r *Router) Connectors() []core.Connector {
	return r.connectors
}

// Connector returns a registered connector by name, or nil.
func (r *Router) Connector(name string) core.Connector {
	return r.byName[name]
}

// SearchProperties searches a location across sources until one succeeds.
// The raw results from the satisfying connector are passed through its
// StandardizeProperty before returning; records that fail standardization
// are dropped with a log line rather than failing the batch. The returned
// string names the source that satisfied the request.
func (r *Router) SearchProperties(ctx context.Context, location string, opts *core.SearchOptions) ([]*models.PropertyRecord, string, error) {
	result, conn, err := r.execute(ctx, core.OpSearchProperties, func(c core.Connector) (interface{}, error) {
		return c.SearchProperties(ctx, location, opts)
	})
	if err != nil {
		return nil, "", err
	}

	raws := result.([]core.RawRecord)
	records := make([]*models.PropertyRecord, 0, len(raws))
	for _, raw := range raws {
		rec, serr := conn.StandardizeProperty(raw)
		if serr != nil {
			r.logger.Warn("dropping record that failed standardization",
				zap.String("source", conn.Name()),
				zap.Error(serr))
			continue
		}
		records = append(records, rec)
	}
	return records, conn.Name(), nil
}

// GetPropertyDetails fetches one property by external ID with failover,
// standardized by the satisfying connector.
func (r *Router) GetPropertyDetails(ctx context.Context, externalID string) (*models.PropertyRecord, string, error) {
	result, conn, err := r.execute(ctx, core.OpGetPropertyDetails, func(c core.Connector) (interface{}, error) {
		return c.GetPropertyDetails(ctx, externalID)
	})
	if err != nil {
		return nil, "", err
	}

	rec, serr := conn.StandardizeProperty(result.(core.RawRecord))
	if serr != nil {
		return nil, "", errors.Wrap(serr, errors.ErrorTypeData, "failed to standardize property details")
	}
	return rec, conn.Name(), nil
}

// GetMarketTrends fetches market trend data for a location with failover.
// Trend payloads are source-shaped and returned as-is.
func (r *Router) GetMarketTrends(ctx context.Context, location string, opts *core.TrendOptions) (core.RawRecord, string, error) {
	result, conn, err := r.execute(ctx, core.OpGetMarketTrends, func(c core.Connector) (interface{}, error) {
		return c.GetMarketTrends(ctx, location, opts)
	})
	if err != nil {
		return nil, "", err
	}
	return result.(core.RawRecord), conn.Name(), nil
}

// execute runs one logical operation across connectors: primary first, then
// the rest in registration order. Every attempt updates the attempted
// connector's call counters before control returns. First success wins; if
// every connector fails the aggregate error carries one entry per source.
func (r *Router) execute(ctx context.Context, op core.Operation, call func(core.Connector) (interface{}, error)) (interface{}, core.Connector, error) {
	sourceErrs := make(map[string]string)

	for _, c := range r.attemptOrder() {
		start := time.Now()
		result, err := call(c)
		latency := time.Since(start)

		c.Stats().RecordAttempt(latency, err)
		metrics.ObserveSourceCall(c.Name(), string(op), latency, err)

		if err == nil {
			if c.Name() != r.primary {
				r.logger.Info("operation satisfied by fallback source",
					zap.String("operation", string(op)),
					zap.String("source", c.Name()))
			}
			return result, c, nil
		}

		sourceErrs[c.Name()] = err.Error()
		r.logger.Warn("source attempt failed",
			zap.String("operation", string(op)),
			zap.String("source", c.Name()),
			zap.Duration("latency", latency),
			zap.Error(err))
	}

	return nil, nil, errors.AllSourcesFailed(string(op), sourceErrs)
}

// attemptOrder returns the enabled connectors with the primary moved to the
// front and everything else kept in registration order.
func (r *Router) attemptOrder() []core.Connector {
	order := make([]core.Connector, 0, len(r.connectors))
	if p, ok := r.byName[r.primary]; ok && p.Enabled() {
		order = append(order, p)
	}
	for _, c := range r.connectors {
		if !c.Enabled() || c.Name() == r.primary {
			continue
		}
		order = append(order, c)
	}
	return order
}
