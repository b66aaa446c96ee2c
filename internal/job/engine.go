package job

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hearthdata/hearth/pkg/logger"
)

// Engine executes a pipeline's phases in order and converts every failure
// mode, including panics, into a populated Result. Run never returns an
// error to the caller; the outcome lives entirely in the Result.
type Engine struct {
	log *zap.Logger
}

// NewEngine creates an engine logging through the given logger.
func NewEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = logger.Get()
	}
	return &Engine{log: log}
}

// Run drives Extract, Transform, and Load strictly in order. A phase error
// stops the run and is recorded in the result; counters returned by Load are
// merged into the result's Extra map, with records_processed promoted to the
// typed field when present.
func (e *Engine) Run(ctx context.Context, jobID string, p Pipeline) (result *Result) {
	result = &Result{
		StartTime: time.Now().UTC(),
		Extra:     make(map[string]interface{}),
	}
	log := e.log.With(zap.String("job_id", jobID))

	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Error = fmt.Sprintf("pipeline panicked: %v", r)
			log.Error("pipeline panicked", zap.Any("panic", r))
		}
		result.EndTime = time.Now().UTC()
		result.DurationSeconds = result.EndTime.Sub(result.StartTime).Seconds()
	}()

	log.Info("starting extract phase")
	raw, err := p.Extract(ctx)
	if err != nil {
		result.Error = fmt.Sprintf("extract failed: %v", err)
		log.Error("extract phase failed", zap.Error(err))
		return result
	}

	log.Info("starting transform phase")
	processed, err := p.Transform(ctx, raw)
	if err != nil {
		result.Error = fmt.Sprintf("transform failed: %v", err)
		log.Error("transform phase failed", zap.Error(err))
		return result
	}

	log.Info("starting load phase")
	counters, err := p.Load(ctx, processed)
	if err != nil {
		result.Error = fmt.Sprintf("load failed: %v", err)
		log.Error("load phase failed", zap.Error(err))
		return result
	}

	for k, v := range counters {
		if k == "records_processed" {
			if n, ok := toInt(v); ok {
				result.RecordsProcessed = n
				continue
			}
		}
		result.Extra[k] = v
	}

	result.Success = true
	log.Info("pipeline completed",
		zap.Int("records_processed", result.RecordsProcessed),
		zap.Duration("elapsed", time.Since(result.StartTime)))
	return result
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
