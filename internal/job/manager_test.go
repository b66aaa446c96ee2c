package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hearthdata/hearth/pkg/errors"
	"github.com/hearthdata/hearth/pkg/metrics"
)

// blockingPipeline holds in Extract until released, so tests can observe
// the running state deterministically.
type blockingPipeline struct {
	started   chan struct{}
	startOnce sync.Once
	release   chan struct{}
	fail      bool
}

func newBlockingPipeline() *blockingPipeline {
	return &blockingPipeline{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (b *blockingPipeline) Extract(ctx context.Context) (interface{}, error) {
	b.startOnce.Do(func() { close(b.started) })
	<-b.release
	if b.fail {
		return nil, errors.New(errors.ErrorTypeSource, "forced failure")
	}
	return nil, nil
}

func (b *blockingPipeline) Transform(ctx context.Context, raw interface{}) (interface{}, error) {
	return raw, nil
}

func (b *blockingPipeline) Load(ctx context.Context, processed interface{}) (map[string]interface{}, error) {
	return map[string]interface{}{"records_processed": 1}, nil
}

func newTestManager(t *testing.T, plugins map[string]Factory) *Manager {
	registry := NewRegistry()
	for name, factory := range plugins {
		require.NoError(t, registry.Register(PluginInfo{Name: name, Description: name}, factory))
	}
	log := zaptest.NewLogger(t)
	return NewManager(registry, NewEngine(log), 10, log)
}

func staticFactory(p Pipeline) Factory {
	return func(cfg map[string]interface{}) (Pipeline, error) { return p, nil }
}

func waitForTerminal(t *testing.T, m *Manager, jobID string) Record {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		rec, err := m.GetJobStatus(jobID)
		require.NoError(t, err)
		if rec.Status.Terminal() {
			return rec
		}
		select {
		case <-deadline:
			t.Fatalf("job %s never reached a terminal state (last: %s)", jobID, rec.Status)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStartJobUnknownPluginFailsFast(t *testing.T) {
	m := newTestManager(t, nil)

	_, err := m.StartJob("nope", nil, false, nil, "")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	assert.Empty(t, m.GetActiveJobs())
}

func TestSynchronousJobLifecycle(t *testing.T) {
	p := newBlockingPipeline()
	close(p.release)
	m := newTestManager(t, map[string]Factory{"noop": staticFactory(p)})

	jobID, err := m.StartJob("noop", map[string]interface{}{"k": "v"}, false, nil, "")
	require.NoError(t, err)
	assert.Contains(t, jobID, "noop-")

	rec, err := m.GetJobStatus(jobID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, rec.Status)
	require.NotNil(t, rec.Result)
	assert.Equal(t, 1, rec.Result.RecordsProcessed)
	assert.NotNil(t, rec.StartedAt)
	assert.NotNil(t, rec.CompletedAt)
	assert.Empty(t, m.GetActiveJobs())
}

func TestAsyncJobMovesFromActiveToHistory(t *testing.T) {
	p := newBlockingPipeline()
	m := newTestManager(t, map[string]Factory{"noop": staticFactory(p)})

	jobID, err := m.StartJob("noop", nil, true, nil, "")
	require.NoError(t, err)

	<-p.started
	active := m.GetActiveJobs()
	require.Len(t, active, 1)
	assert.Equal(t, jobID, active[0].ID)
	assert.Equal(t, StatusRunning, active[0].Status)

	close(p.release)
	rec := waitForTerminal(t, m, jobID)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Empty(t, m.GetActiveJobs())

	history := m.GetJobHistory(HistoryFilter{})
	require.Len(t, history, 1)
	assert.Equal(t, jobID, history[0].ID)
}

func TestFailedJobRecordsError(t *testing.T) {
	p := newBlockingPipeline()
	p.fail = true
	close(p.release)
	m := newTestManager(t, map[string]Factory{"noop": staticFactory(p)})

	jobID, err := m.StartJob("noop", nil, false, nil, "")
	require.NoError(t, err)

	rec, err := m.GetJobStatus(jobID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "forced failure")
}

func TestCallbackRunsAfterTerminalState(t *testing.T) {
	p := newBlockingPipeline()
	close(p.release)
	m := newTestManager(t, map[string]Factory{"noop": staticFactory(p)})

	var mu sync.Mutex
	var got *Record
	_, err := m.StartJob("noop", nil, false, func(rec Record) {
		mu.Lock()
		got = &rec
		mu.Unlock()
	}, "sched-1")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, got)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "sched-1", got.ScheduledID)
}

func TestCancelJobIsSoft(t *testing.T) {
	p := newBlockingPipeline()
	m := newTestManager(t, map[string]Factory{"noop": staticFactory(p)})

	jobID, err := m.StartJob("noop", nil, true, nil, "")
	require.NoError(t, err)
	<-p.started

	require.True(t, m.CancelJob(jobID))
	assert.False(t, m.CancelJob(jobID), "second cancel must be a no-op")

	rec, err := m.GetJobStatus(jobID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, CancelReason, rec.Error)

	// The worker finishes after cancellation; the cancelled record must not
	// be overwritten by the late result.
	close(p.release)
	time.Sleep(50 * time.Millisecond)
	rec, err = m.GetJobStatus(jobID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, CancelReason, rec.Error)
	assert.Nil(t, rec.Result)
}

func TestCancelBeforeWorkerRunsReleasesActiveGauge(t *testing.T) {
	p := newBlockingPipeline()
	close(p.release)
	m := newTestManager(t, map[string]Factory{"noop": staticFactory(p)})

	before := testutil.ToFloat64(metrics.ActiveJobs)

	// Track a job the way StartJob does, then cancel it before its worker
	// goroutine gets scheduled.
	rec := &Record{
		ID:        "noop-1",
		Plugin:    "noop",
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	m.mu.Lock()
	m.active[rec.ID] = rec
	m.mu.Unlock()
	metrics.ActiveJobs.Inc()

	require.True(t, m.CancelJob(rec.ID))
	m.run(rec.ID, p, nil)

	assert.Equal(t, before, testutil.ToFloat64(metrics.ActiveJobs),
		"gauge must return to its baseline after a pre-start cancel")

	got, err := m.GetJobStatus(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, CancelReason, got.Error)
}

func TestCancelUnknownJobReturnsFalse(t *testing.T) {
	m := newTestManager(t, nil)
	assert.False(t, m.CancelJob("missing"))
}

func TestGetJobStatusUnknownJob(t *testing.T) {
	m := newTestManager(t, nil)
	_, err := m.GetJobStatus("missing")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestGetJobHistoryFilters(t *testing.T) {
	ok := newBlockingPipeline()
	close(ok.release)
	bad := newBlockingPipeline()
	bad.fail = true
	close(bad.release)
	m := newTestManager(t, map[string]Factory{
		"good": staticFactory(ok),
		"bad":  staticFactory(bad),
	})

	_, err := m.StartJob("good", nil, false, nil, "")
	require.NoError(t, err)
	_, err = m.StartJob("bad", nil, false, nil, "")
	require.NoError(t, err)

	all := m.GetJobHistory(HistoryFilter{})
	assert.Len(t, all, 2)

	failed := m.GetJobHistory(HistoryFilter{Status: StatusFailed})
	require.Len(t, failed, 1)
	assert.Equal(t, "bad", failed[0].Plugin)

	byPlugin := m.GetJobHistory(HistoryFilter{Plugin: "good"})
	require.Len(t, byPlugin, 1)
	assert.Equal(t, StatusCompleted, byPlugin[0].Status)

	limited := m.GetJobHistory(HistoryFilter{Limit: 1})
	assert.Len(t, limited, 1)

	none := m.GetJobHistory(HistoryFilter{Since: time.Now().Add(time.Hour)})
	assert.Empty(t, none)
}

func TestHistoryOrderedByStartTime(t *testing.T) {
	m := newTestManager(t, nil)
	base := time.Now().UTC()
	early := base.Add(-time.Minute)
	late := base.Add(time.Minute)

	// Creation order and start order deliberately disagree; the job that
	// was cancelled before starting falls back to its creation time.
	m.mu.Lock()
	m.appendHistoryLocked(&Record{ID: "slow-start", Plugin: "noop", Status: StatusCompleted, CreatedAt: base, StartedAt: &late})
	m.appendHistoryLocked(&Record{ID: "fast-start", Plugin: "noop", Status: StatusCompleted, CreatedAt: base.Add(time.Second), StartedAt: &early})
	m.appendHistoryLocked(&Record{ID: "never-started", Plugin: "noop", Status: StatusFailed, CreatedAt: base.Add(-time.Hour)})
	m.mu.Unlock()

	out := m.GetJobHistory(HistoryFilter{})
	require.Len(t, out, 3)
	assert.Equal(t, "slow-start", out[0].ID)
	assert.Equal(t, "fast-start", out[1].ID)
	assert.Equal(t, "never-started", out[2].ID)

	since := m.GetJobHistory(HistoryFilter{Since: base})
	require.Len(t, since, 1)
	assert.Equal(t, "slow-start", since[0].ID)
}

func TestHistoryIsBounded(t *testing.T) {
	p := newBlockingPipeline()
	close(p.release)
	registry := NewRegistry()
	require.NoError(t, registry.Register(PluginInfo{Name: "noop"}, staticFactory(p)))
	log := zaptest.NewLogger(t)
	m := NewManager(registry, NewEngine(log), 3, log)

	for i := 0; i < 5; i++ {
		_, err := m.StartJob("noop", nil, false, nil, "")
		require.NoError(t, err)
	}
	assert.Len(t, m.GetJobHistory(HistoryFilter{}), 3)
}

func TestListAvailablePlugins(t *testing.T) {
	p := newBlockingPipeline()
	m := newTestManager(t, map[string]Factory{
		"beta":  staticFactory(p),
		"alpha": staticFactory(p),
	})

	infos := m.ListAvailablePlugins()
	require.Len(t, infos, 2)
	assert.Equal(t, "alpha", infos[0].Name)
	assert.Equal(t, "beta", infos[1].Name)
}
