// Package runner implements the harvest run execution loop.
package runner

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/marketops/stock-harvester/internal/harvest"
	"github.com/marketops/stock-harvester/internal/logging"
	"github.com/marketops/stock-harvester/internal/metrics"
)

// Config controls Runner behavior.
type Config struct {
	// TargetURL is the page every run scrapes.
	TargetURL string
}

// Runner consumes queued runs and executes the harvest pipeline.
// Each run gets its own browser session and its own dedup state; runs
// never share mutable harvest state.
type Runner struct {
	queue    harvest.Queue
	runStore harvest.RunStore
	factory  harvest.DriverFactory
	prober   harvest.Prober
	loop     *harvest.Loop
	pipeline harvest.Deliverer
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Runner. The prober may be nil to skip the pre-run
// reachability check.
func New(
	queue harvest.Queue,
	runStore harvest.RunStore,
	factory harvest.DriverFactory,
	prober harvest.Prober,
	loop *harvest.Loop,
	pipeline harvest.Deliverer,
	cfg Config,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		queue:    queue,
		runStore: runStore,
		factory:  factory,
		prober:   prober,
		loop:     loop,
		pipeline: pipeline,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (r *Runner) Run(ctx context.Context) {
	for {
		item, err := r.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		r.logger.Debug("dequeued run", zap.String("run_id", item.RunID))
		r.processRun(ctx, item)
	}
}

func (r *Runner) processRun(ctx context.Context, item harvest.QueueItem) {
	logger := logging.WithRun(r.logger, item.RunID)
	counters := harvest.RunCounters{}

	if err := r.runStore.UpdateRunStatus(ctx, item.RunID, harvest.RunStatusRunning, "", counters); err != nil {
		logger.Error("update run status failed", zap.Error(err))
		return
	}

	metrics.IncActiveRuns()
	defer metrics.DecActiveRuns()

	status, errText := r.executeRun(ctx, logger, &counters)
	metrics.ObserveRun(string(status))

	// Record the terminal status with a fresh context so a canceled
	// run still lands in the store.
	storeCtx := ctx
	if storeCtx.Err() != nil {
		storeCtx = context.WithoutCancel(ctx)
	}
	if err := r.runStore.UpdateRunStatus(storeCtx, item.RunID, status, errText, counters); err != nil {
		logger.Error("final run status update failed", zap.Error(err))
	}

	logger.Info("run finished",
		zap.String("status", string(status)),
		zap.Int("records", counters.RecordsHarvested),
		zap.Int("iterations", counters.Iterations),
		zap.Bool("delivered", counters.Delivered),
	)
}

func (r *Runner) executeRun(
	ctx context.Context,
	logger *zap.Logger,
	counters *harvest.RunCounters,
) (harvest.RunStatus, string) {
	if r.prober != nil {
		if err := r.prober.Check(ctx, r.cfg.TargetURL); err != nil {
			logger.Warn("target preflight failed", zap.Error(err))
			return r.finalStatus(ctx, err)
		}
	}

	session, err := r.factory.NewSession(ctx)
	if err != nil {
		logger.Error("browser session setup failed", zap.Error(err))
		return r.finalStatus(ctx, err)
	}
	defer session.Close()

	result, err := r.loop.Harvest(ctx, session)
	counters.RecordsHarvested = len(result.Records)
	counters.Iterations = result.Iterations
	counters.RowsRejected = result.RowsRejected
	counters.Exhausted = result.Exhausted

	outcome := "complete"
	if result.Exhausted {
		outcome = "exhausted"
	}
	if err != nil {
		outcome = "aborted"
	}
	metrics.ObserveHarvest(len(result.Records), result.RowsRejected, result.Iterations, outcome)

	if err != nil {
		logger.Error("harvest failed", zap.Error(err))
		return r.finalStatus(ctx, err)
	}

	if err := r.pipeline.Deliver(ctx, result.Records); err != nil {
		// The dataset may already be persisted when only notification
		// failed; counters keep the harvested total either way.
		logger.Error("delivery failed", zap.Error(err))
		return r.finalStatus(ctx, err)
	}
	counters.Delivered = true

	return harvest.RunStatusSucceeded, ""
}

// finalStatus maps an execution error to a terminal run status,
// distinguishing caller cancellation from genuine failure.
func (r *Runner) finalStatus(ctx context.Context, err error) (harvest.RunStatus, string) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return harvest.RunStatusCanceled, "run canceled"
	}
	return harvest.RunStatusFailed, err.Error()
}
