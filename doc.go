// Package hearth aggregates property listings from multiple upstream
// providers into a single canonical store. It routes search and detail
// requests across configured source connectors with automatic failover,
// reconciles near-duplicate listings, and tracks per-source health from
// live call statistics.
//
// # Architecture
//
// The system is organized around three layers:
//
// 1. Connectors: every upstream provider is an adapter implementing the
// core.Connector capability interface. Adapters embed base.BaseConnector
// for shared transport, retries, and call counters, and self-register
// with the connector registry at startup.
//
// 2. Routing: router.Router exposes the same capability surface as a
// single connector but attempts the primary source first and falls back
// through the remaining enabled sources in registration order. Health
// status is derived from call counters for dashboards; it never changes
// attempt ordering.
//
// 3. Jobs: data flows run as registered pipeline plugins driven by the
// job engine (internal/job). The property_sync plugin (internal/sync)
// searches configured locations, deduplicates the results, and upserts
// them into the gorm-backed store (internal/store).
//
// # Key Packages
//
//	pkg/connector  - source connector framework (core, base, registry, router, health)
//	pkg/dedup      - strict and fuzzy record deduplication
//	pkg/models     - canonical property record types
//	pkg/config     - viper-based configuration with environment overrides
//	pkg/errors     - structured error handling
//	pkg/logger     - structured logging
//	pkg/metrics    - Prometheus metrics
//	internal/job   - pipeline plugin registry, engine, and job manager
//	internal/sync  - the property_sync pipeline
//	internal/store - property and health-snapshot persistence
//
// # Quick Start
//
// Run the periodic sync against a configuration file:
//
//	hearth sync --config hearth.yaml
//
// Or run a single sync cycle and print the job record:
//
//	hearth run property_sync --config hearth.yaml
package hearth
