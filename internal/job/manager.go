package job

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hearthdata/hearth/pkg/errors"
	"github.com/hearthdata/hearth/pkg/logger"
	"github.com/hearthdata/hearth/pkg/metrics"
)

const defaultHistoryLimit = 1000

// Callback is invoked after an async job reaches a terminal state. It runs
// on the worker goroutine, outside the manager's lock.
type Callback func(rec Record)

// Manager tracks active jobs and a bounded history of finished ones. A
// single mutex guards both collections; pipeline execution happens outside
// the lock on a dedicated goroutine per async job.
//
// Cancellation is advisory. CancelJob marks the record failed with the
// cancel sentinel and moves it to history immediately, but the worker
// goroutine keeps running until its pipeline returns; its result is then
// discarded.
type Manager struct {
	registry *Registry
	engine   *Engine
	log      *zap.Logger

	mu           sync.Mutex
	active       map[string]*Record
	history      []*Record
	historyLimit int
}

// NewManager creates a manager over the given plugin registry.
func NewManager(registry *Registry, engine *Engine, historyLimit int, log *zap.Logger) *Manager {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	if log == nil {
		log = logger.Get()
	}
	return &Manager{
		registry:     registry,
		engine:       engine,
		log:          log,
		active:       make(map[string]*Record),
		history:      make([]*Record, 0),
		historyLimit: historyLimit,
	}
}

// StartJob creates a job for the named plugin and begins execution. Async
// jobs return immediately with the job ID; synchronous jobs block until the
// pipeline finishes. The pipeline is built before the job is tracked, so an
// unknown plugin or bad config fails fast without leaving a record behind.
func (m *Manager) StartJob(plugin string, cfg map[string]interface{}, async bool, cb Callback, scheduledID string) (string, error) {
	pipeline, err := m.registry.Create(plugin, cfg)
	if err != nil {
		return "", err
	}

	rec := &Record{
		ID:          fmt.Sprintf("%s-%d", plugin, time.Now().UnixNano()),
		Plugin:      plugin,
		Config:      cfg,
		Status:      StatusPending,
		CreatedAt:   time.Now().UTC(),
		ScheduledID: scheduledID,
	}

	m.mu.Lock()
	m.active[rec.ID] = rec
	m.mu.Unlock()
	metrics.ActiveJobs.Inc()

	m.log.Info("job started",
		zap.String("job_id", rec.ID),
		zap.String("plugin", plugin),
		zap.Bool("async", async))

	if async {
		go m.run(rec.ID, pipeline, cb)
		return rec.ID, nil
	}
	m.run(rec.ID, pipeline, cb)
	return rec.ID, nil
}

// run executes the pipeline for a tracked job and records its outcome. If
// the job was cancelled while running, the record has already moved to
// history and the result is dropped.
func (m *Manager) run(jobID string, pipeline Pipeline, cb Callback) {
	m.mu.Lock()
	rec, ok := m.active[jobID]
	if !ok {
		// Cancelled before the worker ran; release the slot without executing.
		m.mu.Unlock()
		metrics.ActiveJobs.Dec()
		return
	}
	now := time.Now().UTC()
	rec.Status = StatusRunning
	rec.StartedAt = &now
	m.mu.Unlock()

	result := m.engine.Run(context.Background(), jobID, pipeline)

	m.mu.Lock()
	rec, ok = m.active[jobID]
	if !ok {
		// Cancelled mid-run; the cancelled record stays authoritative.
		m.mu.Unlock()
		metrics.ActiveJobs.Dec()
		m.log.Info("discarding result of cancelled job", zap.String("job_id", jobID))
		return
	}
	done := time.Now().UTC()
	rec.CompletedAt = &done
	rec.Result = result
	if result.Success {
		rec.Status = StatusCompleted
	} else {
		rec.Status = StatusFailed
		rec.Error = result.Error
	}
	delete(m.active, jobID)
	m.appendHistoryLocked(rec)
	final := *rec
	m.mu.Unlock()

	metrics.ActiveJobs.Dec()
	metrics.JobsTotal.WithLabelValues(final.Plugin, string(final.Status)).Inc()

	if final.Status == StatusFailed {
		m.log.Error("job failed",
			zap.String("job_id", final.ID),
			zap.String("plugin", final.Plugin),
			zap.String("error", final.Error))
	} else {
		m.log.Info("job completed",
			zap.String("job_id", final.ID),
			zap.String("plugin", final.Plugin))
	}

	if cb != nil {
		cb(final)
	}
}

// GetJobStatus returns a copy of the job record, checking active jobs first
// and then history.
func (m *Manager) GetJobStatus(jobID string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.active[jobID]; ok {
		return *rec, nil
	}
	for _, rec := range m.history {
		if rec.ID == jobID {
			return *rec, nil
		}
	}
	return Record{}, errors.New(errors.ErrorTypeNotFound,
		fmt.Sprintf("unknown job: %s", jobID))
}

// GetActiveJobs returns copies of all currently tracked jobs.
func (m *Manager) GetActiveJobs() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Record, 0, len(m.active))
	for _, rec := range m.active {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// HistoryFilter narrows GetJobHistory results. Zero values match everything.
type HistoryFilter struct {
	Plugin string
	Status Status
	Since  time.Time
	Limit  int
}

// startTime is when the job began running. Jobs cancelled before their
// worker ran never start, so creation time stands in.
func startTime(rec *Record) time.Time {
	if rec.StartedAt != nil {
		return *rec.StartedAt
	}
	return rec.CreatedAt
}

// GetJobHistory returns finished jobs matching the filter, ordered by start
// time with the most recent first.
func (m *Manager) GetJobHistory(filter HistoryFilter) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Record, 0, len(m.history))
	for _, rec := range m.history {
		if filter.Plugin != "" && rec.Plugin != filter.Plugin {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if !filter.Since.IsZero() && startTime(rec).Before(filter.Since) {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return startTime(&out[i]).After(startTime(&out[j])) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

// CancelJob marks an active job failed with the cancel sentinel and moves
// it to history. It reports whether a job was cancelled; finished or
// unknown jobs return false. The worker goroutine is not interrupted.
func (m *Manager) CancelJob(jobID string) bool {
	m.mu.Lock()
	rec, ok := m.active[jobID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	now := time.Now().UTC()
	rec.Status = StatusFailed
	rec.CompletedAt = &now
	rec.Error = CancelReason
	delete(m.active, jobID)
	m.appendHistoryLocked(rec)
	plugin := rec.Plugin
	m.mu.Unlock()

	metrics.JobsTotal.WithLabelValues(plugin, "cancelled").Inc()
	m.log.Info("job cancelled", zap.String("job_id", jobID))
	return true
}

// ListAvailablePlugins returns the plugins jobs can be started for.
func (m *Manager) ListAvailablePlugins() []PluginInfo {
	return m.registry.List()
}

func (m *Manager) appendHistoryLocked(rec *Record) {
	m.history = append(m.history, rec)
	if len(m.history) > m.historyLimit {
		m.history = m.history[len(m.history)-m.historyLimit:]
	}
}
