package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/claimprobe/internal/model"
	"github.com/ppiankov/claimprobe/internal/store"
)

// coordinatorSleepFunc is swapped out in tests
var coordinatorSleepFunc = time.Sleep

// Evaluator produces the verdict record for one combination
type Evaluator interface {
	Evaluate(ctx context.Context, combo model.Combination) (*model.VerdictRecord, error)
}

// Options configures a Coordinator
type Options struct {
	Workers int
	// MaxAttempts per combination; values below 1 mean a single attempt
	MaxAttempts int
	// Backoff before the second attempt, doubled for each further one
	Backoff time.Duration
}

// Stats summarizes a run
type Stats struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	// NotStarted counts combinations left undispatched after cancellation
	NotStarted int `json:"not_started"`
}

// Coordinator fans pending combinations out over a worker pool and
// persists each finished record
type Coordinator struct {
	sink   store.Sink
	opts   Options
	logger *zap.Logger
}

// NewCoordinator creates a coordinator writing to sink
func NewCoordinator(sink store.Sink, opts Options, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * time.Second
	}
	return &Coordinator{sink: sink, opts: opts, logger: logger}
}

// CombinationResult is the outcome of one combination job
type CombinationResult struct {
	Combination model.Combination
	Record      *model.VerdictRecord
	Attempts    int
	Error       error
}

// GetError returns the error from the combination result
func (r *CombinationResult) GetError() error {
	return r.Error
}

type combinationJob struct {
	combo     model.Combination
	evaluator Evaluator
	sink      store.Sink
	attempts  int
	backoff   time.Duration
	logger    *zap.Logger
}

// Execute evaluates the combination and appends its record. The
// combination only counts as succeeded once the record is stored.
func (j *combinationJob) Execute(ctx context.Context) Result {
	res := &CombinationResult{Combination: j.combo}

	delay := j.backoff
	for attempt := 1; attempt <= j.attempts; attempt++ {
		res.Attempts = attempt

		record, err := j.evaluator.Evaluate(ctx, j.combo)
		if err == nil {
			if err := j.sink.Append(record); err != nil {
				res.Error = fmt.Errorf("store record: %w", err)
				break
			}
			res.Record = record
			res.Error = nil
			j.logger.Info("combination done",
				zap.String("combination", j.combo.String()),
				zap.Bool("result", record.Result))
			return res
		}

		res.Error = err
		if attempt < j.attempts {
			j.logger.Warn("combination attempt failed, retrying",
				zap.String("combination", j.combo.String()),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(err))
			coordinatorSleepFunc(delay)
			delay *= 2
		}
	}

	j.logger.Error("combination failed",
		zap.String("combination", j.combo.String()),
		zap.Int("attempts", res.Attempts),
		zap.Error(res.Error))
	return res
}

// Run evaluates every pending combination. Failures are logged and
// counted, never fatal. Cancelling ctx stops dispatch; combinations
// already running finish and are persisted.
func (c *Coordinator) Run(ctx context.Context, pending []model.Combination, evaluator Evaluator) Stats {
	stats := Stats{Total: len(pending)}
	if len(pending) == 0 {
		return stats
	}

	pool := NewPool(c.opts.Workers)
	pool.Start()

	dispatched := 0
	for _, combo := range pending {
		job := &combinationJob{
			combo:     combo,
			evaluator: evaluator,
			sink:      c.sink,
			attempts:  c.opts.MaxAttempts,
			backoff:   c.opts.Backoff,
			logger:    c.logger,
		}
		if !pool.Submit(ctx, job) {
			break
		}
		dispatched++
	}

	if dispatched < len(pending) {
		stats.NotStarted = len(pending) - dispatched
		c.logger.Warn("run cancelled, waiting for in-flight combinations",
			zap.Int("not_started", stats.NotStarted))
	}

	for _, r := range pool.Wait() {
		if r.GetError() != nil {
			stats.Failed++
			continue
		}
		stats.Succeeded++
	}

	return stats
}
