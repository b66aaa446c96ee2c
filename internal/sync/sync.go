// Package sync implements the property_sync pipeline plugin. A run searches
// each configured location through the failover router, deduplicates the
// combined result set, upserts the survivors into the store, and persists a
// health snapshot for every connector.
package sync

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hearthdata/hearth/internal/job"
	"github.com/hearthdata/hearth/internal/store"
	"github.com/hearthdata/hearth/pkg/config"
	"github.com/hearthdata/hearth/pkg/connector/core"
	"github.com/hearthdata/hearth/pkg/connector/health"
	"github.com/hearthdata/hearth/pkg/connector/router"
	"github.com/hearthdata/hearth/pkg/dedup"
	"github.com/hearthdata/hearth/pkg/errors"
	"github.com/hearthdata/hearth/pkg/metrics"
	"github.com/hearthdata/hearth/pkg/models"
)

// PluginName is the name the sync pipeline registers under.
const PluginName = "property_sync"

// Strict deduplication key: the same listing from the same source is always
// a duplicate, while the same listing from two sources is kept for both.
var strictKeyFields = []string{"external_id", "source"}

// Pipeline is one property sync run. Each job execution gets a fresh
// instance with its own run ID.
type Pipeline struct {
	runID       string
	router      *router.Router
	store       *store.Store
	locations   []string
	searchLimit int
	threshold   int
	log         *zap.Logger
}

// Deps are the collaborators shared by every sync run.
type Deps struct {
	Router *router.Router
	Store  *store.Store
	Config config.SyncConfig
	Logger *zap.Logger
}

// Register adds the property_sync plugin to the job registry. Job config may
// override the configured locations ("locations": []string) and fuzzy
// threshold ("fuzzy_threshold": number) per run.
func Register(registry *job.Registry, deps Deps) error {
	info := job.PluginInfo{
		Name:        PluginName,
		Description: "searches configured locations across all sources, deduplicates, and upserts property records",
	}
	return registry.Register(info, func(cfg map[string]interface{}) (job.Pipeline, error) {
		return newPipeline(deps, cfg)
	})
}

func newPipeline(deps Deps, cfg map[string]interface{}) (job.Pipeline, error) {
	if deps.Router == nil || deps.Store == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "sync pipeline requires a router and a store")
	}

	p := &Pipeline{
		runID:       uuid.NewString(),
		router:      deps.Router,
		store:       deps.Store,
		locations:   deps.Config.Locations,
		searchLimit: deps.Config.SearchLimit,
		threshold:   deps.Config.FuzzyThreshold,
		log:         deps.Logger,
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	p.log = p.log.With(zap.String("run_id", p.runID))

	if locs, ok := cfg["locations"].([]interface{}); ok && len(locs) > 0 {
		override := make([]string, 0, len(locs))
		for _, l := range locs {
			s, ok := l.(string)
			if !ok {
				return nil, errors.New(errors.ErrorTypeValidation, "locations override must be a list of strings")
			}
			override = append(override, s)
		}
		p.locations = override
	}
	if t, ok := cfg["fuzzy_threshold"].(float64); ok {
		p.threshold = int(t)
	} else if t, ok := cfg["fuzzy_threshold"].(int); ok {
		p.threshold = t
	}
	if p.threshold < 0 || p.threshold > 100 {
		return nil, errors.New(errors.ErrorTypeValidation,
			fmt.Sprintf("fuzzy threshold must be between 0 and 100, got %d", p.threshold))
	}
	if len(p.locations) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "no locations configured for sync")
	}
	return p, nil
}

// Extract searches every configured location through the router. A location
// where all sources fail is logged and skipped; the run only fails when no
// location yields records.
func (p *Pipeline) Extract(ctx context.Context) (interface{}, error) {
	opts := &core.SearchOptions{Limit: p.searchLimit}
	var collected []*models.PropertyRecord
	failed := 0

	for _, location := range p.locations {
		recs, sourceUsed, err := p.router.SearchProperties(ctx, location, opts)
		if err != nil {
			failed++
			p.log.Warn("search failed for location",
				zap.String("location", location),
				zap.Error(err))
			continue
		}
		p.log.Info("search completed",
			zap.String("location", location),
			zap.String("source", sourceUsed),
			zap.Int("records", len(recs)))
		collected = append(collected, recs...)
	}

	if failed == len(p.locations) {
		return nil, errors.New(errors.ErrorTypeSource, "all locations failed to return records")
	}
	return collected, nil
}

// Transform validates and deduplicates the extracted records. Invalid
// records are dropped with a warning; strict dedup runs before fuzzy so
// exact re-listings never reach the similarity pass.
func (p *Pipeline) Transform(ctx context.Context, raw interface{}) (interface{}, error) {
	records, ok := raw.([]*models.PropertyRecord)
	if !ok {
		return nil, errors.New(errors.ErrorTypeInternal, "unexpected extract output type")
	}

	valid := make([]*models.PropertyRecord, 0, len(records))
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			p.log.Warn("dropping invalid record",
				zap.String("external_id", rec.ExternalID),
				zap.String("source", rec.Source),
				zap.Error(err))
			continue
		}
		valid = append(valid, rec)
	}

	strict := dedup.DeduplicateStrict(valid, strictKeyFields)
	if dropped := len(valid) - len(strict); dropped > 0 {
		metrics.RecordsDeduplicated.WithLabelValues("strict").Add(float64(dropped))
	}

	fuzzy := dedup.DeduplicateFuzzy(strict, p.threshold)
	if dropped := len(strict) - len(fuzzy); dropped > 0 {
		metrics.RecordsDeduplicated.WithLabelValues("fuzzy").Add(float64(dropped))
	}

	p.log.Info("deduplication complete",
		zap.Int("input", len(records)),
		zap.Int("valid", len(valid)),
		zap.Int("after_strict", len(strict)),
		zap.Int("after_fuzzy", len(fuzzy)))
	return fuzzy, nil
}

// Load upserts each surviving record and then persists a health snapshot
// for every connector, whether or not it served this run. Individual upsert
// failures are counted and logged but do not abort the run.
func (p *Pipeline) Load(ctx context.Context, processed interface{}) (map[string]interface{}, error) {
	records, ok := processed.([]*models.PropertyRecord)
	if !ok {
		return nil, errors.New(errors.ErrorTypeInternal, "unexpected transform output type")
	}

	timer := metrics.NewTimer("upsert_batch")
	added, updated, failed := 0, 0, 0
	for _, rec := range records {
		created, err := p.store.Upsert(ctx, rec)
		switch {
		case err != nil:
			failed++
			metrics.RecordsUpserted.WithLabelValues("failed").Inc()
			p.log.Error("failed to upsert record",
				zap.String("external_id", rec.ExternalID),
				zap.String("source", rec.Source),
				zap.Error(err))
		case created:
			added++
			metrics.RecordsUpserted.WithLabelValues("created").Inc()
		default:
			updated++
			metrics.RecordsUpserted.WithLabelValues("updated").Inc()
		}
	}
	p.log.Info("upsert batch finished",
		zap.Int("added", added),
		zap.Int("updated", updated),
		zap.Int("failed", failed),
		zap.Duration("duration", timer.Stop()))

	for _, c := range p.router.Connectors() {
		snap := health.Evaluate(c)
		if err := p.store.SaveHealthSnapshot(ctx, snap); err != nil {
			p.log.Error("failed to save health snapshot",
				zap.String("source", snap.Source),
				zap.Error(err))
			continue
		}
		p.log.Info("health snapshot saved",
			zap.String("source", snap.Source),
			zap.String("status", string(snap.Status)),
			zap.Float64("error_rate", snap.ErrorRate))
	}

	return map[string]interface{}{
		"records_processed": len(records),
		"records_added":     added,
		"records_updated":   updated,
		"records_failed":    failed,
	}, nil
}
