// Package connector provides the framework for building property data
// source adapters and routing requests across them.
//
// # Sub-packages
//
//   - core: the Connector capability interface every source adapter
//     implements, plus the shared CallStats counters.
//
//   - base: BaseConnector, the embeddable foundation that owns the HTTP
//     client, retry policy, structured logging, and call counters. All
//     production connectors should embed BaseConnector.
//
//   - registry: a factory registry keyed by connector type. Connector
//     packages self-register in init; the process wires instances from
//     configuration at startup.
//
//   - router: failover routing across an ordered set of connectors. The
//     primary is attempted first, then the remaining enabled connectors
//     in registration order until one succeeds.
//
//   - health: pure reduction of a connector's call counters to a status
//     (healthy, degraded, critical) and error rate, recomputed on read.
//
//   - sources: concrete connector implementations, one package per
//     provider type.
//
// # Building a Connector
//
// Embed BaseConnector, implement the capability methods, and register a
// factory:
//
//	type Source struct {
//	    *base.BaseConnector
//	}
//
//	func New(cfg *config.ConnectorConfig) (core.Connector, error) {
//	    return &Source{BaseConnector: base.NewBaseConnector(cfg)}, nil
//	}
//
//	func init() {
//	    _ = registry.Register("myprovider", New)
//	}
//
// Wrap outbound calls in ExecuteWithRetry and classify responses with
// base.ClassifyResponse so failures carry the right error type for
// retry decisions and health counters.
package connector
