package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// LoopConfig controls the harvest loop's pacing and termination.
// Delays default to values tuned for a lazily loading page; tests
// override them with short durations.
type LoopConfig struct {
	// URL is the target page.
	URL string
	// InitialSettle is the fixed delay after navigation for first paint.
	InitialSettle time.Duration
	// ScrollAdvances is how many incremental viewport scrolls each
	// iteration issues; small increments trigger lazy rendering
	// progressively where one large jump would not.
	ScrollAdvances int
	// ScrollSettle is the delay after each incremental scroll.
	ScrollSettle time.Duration
	// BottomSettle is the longer delay after a forced scroll-to-bottom
	// probe.
	BottomSettle time.Duration
	// WaitRowsTimeout bounds each wait for row elements.
	WaitRowsTimeout time.Duration
	// IterationPause is the small wait between iterations.
	IterationPause time.Duration
	// SnapshotEvery requests a diagnostic screenshot each time the
	// accumulated record count crosses a multiple of this value; zero
	// disables snapshots.
	SnapshotEvery int
	Convergence   ConvergenceConfig
}

func (c LoopConfig) withDefaults() LoopConfig {
	if c.InitialSettle <= 0 {
		c.InitialSettle = 10 * time.Second
	}
	if c.ScrollAdvances <= 0 {
		c.ScrollAdvances = 3
	}
	if c.ScrollSettle <= 0 {
		c.ScrollSettle = 8 * time.Second
	}
	if c.BottomSettle <= 0 {
		c.BottomSettle = 3 * time.Second
	}
	if c.WaitRowsTimeout <= 0 {
		c.WaitRowsTimeout = 20 * time.Second
	}
	if c.IterationPause <= 0 {
		c.IterationPause = 2 * time.Second
	}
	return c
}

// Loop drives a virtualized table to reveal all its rows, extracting
// and deduplicating records as they appear, and terminates
// deterministically via the convergence detector.
type Loop struct {
	cfg       LoopConfig
	extractor *Extractor
	snapshots SnapshotStore
	logger    *zap.Logger
}

// NewLoop constructs a harvest loop. snapshots may be nil to disable
// diagnostic screenshots.
func NewLoop(cfg LoopConfig, extractor *Extractor, snapshots SnapshotStore, logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		cfg:       cfg.withDefaults(),
		extractor: extractor,
		snapshots: snapshots,
		logger:    logger,
	}
}

type loopState int

const (
	stateLoading loopState = iota
	stateScrolling
	stateWaiting
	stateExtracting
	stateDeciding
	stateDone
)

// harvestState is the run-local mutable state threaded through the
// state machine. It is created per harvest and never shared.
type harvestState struct {
	records      []StockRecord
	index        *Index
	detector     *Detector
	rowsRejected int
	everSawRows  bool
	newThisIter  int
	lastSnapshot int
	exhausted    bool
}

// Harvest runs the scroll-and-extract state machine over one driver
// session. The contract is all-or-nothing: any driver error during
// loading, scrolling or waiting discards partial accumulation. Per-row
// extraction errors are absorbed. Cancellation is cooperative, checked
// between state transitions.
func (l *Loop) Harvest(ctx context.Context, driver PageDriver) (Result, error) {
	st := &harvestState{
		index:    NewIndex(),
		detector: NewDetector(l.cfg.Convergence),
	}

	state := stateLoading
	for state != stateDone {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("harvest canceled: %w", err)
		}

		var err error
		switch state {
		case stateLoading:
			state, err = l.load(ctx, driver)
		case stateScrolling:
			state, err = l.scroll(ctx, driver)
		case stateWaiting:
			state, err = l.waitForRows(ctx, driver, st)
		case stateExtracting:
			state, err = l.extract(ctx, driver, st)
		case stateDeciding:
			state, err = l.decide(ctx, driver, st)
		}
		if err != nil {
			return Result{}, err
		}
	}

	if len(st.records) == 0 {
		return Result{}, ErrEmptyResult
	}
	return Result{
		Records:      st.records,
		Iterations:   st.detector.Iterations(),
		RowsRejected: st.rowsRejected,
		Exhausted:    st.exhausted,
	}, nil
}

func (l *Loop) load(ctx context.Context, driver PageDriver) (loopState, error) {
	l.logger.Info("navigating to target page", zap.String("url", l.cfg.URL))
	if err := driver.Navigate(ctx, l.cfg.URL); err != nil {
		return stateDone, fmt.Errorf("navigate: %w", err)
	}
	if err := sleepCtx(ctx, l.cfg.InitialSettle); err != nil {
		return stateDone, err
	}
	return stateScrolling, nil
}

func (l *Loop) scroll(ctx context.Context, driver PageDriver) (loopState, error) {
	for i := 0; i < l.cfg.ScrollAdvances; i++ {
		if err := driver.ScrollAdvance(ctx); err != nil {
			return stateDone, fmt.Errorf("scroll advance: %w", err)
		}
		if err := sleepCtx(ctx, l.cfg.ScrollSettle); err != nil {
			return stateDone, err
		}
	}
	return stateWaiting, nil
}

func (l *Loop) waitForRows(ctx context.Context, driver PageDriver, st *harvestState) (loopState, error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.cfg.WaitRowsTimeout)
	defer cancel()

	err := driver.WaitForRows(waitCtx)
	if err == nil {
		return stateExtracting, nil
	}
	if ctx.Err() != nil {
		return stateDone, fmt.Errorf("wait for rows: %w", ctx.Err())
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		return stateDone, fmt.Errorf("wait for rows: %w", err)
	}
	if !st.everSawRows {
		// First iteration and the page never rendered a single row.
		return stateDone, ErrNoRowsFound
	}
	// Rows were found previously; treat the timeout as zero new rows
	// this iteration and keep going.
	l.logger.Warn("row wait timed out after rows were already found")
	return stateExtracting, nil
}

func (l *Loop) extract(ctx context.Context, driver PageDriver, st *harvestState) (loopState, error) {
	cellRows, err := driver.RowCells(ctx)
	if err != nil {
		return stateDone, fmt.Errorf("read row cells: %w", err)
	}
	if len(cellRows) > 0 {
		st.everSawRows = true
	}

	st.newThisIter = 0
	for _, cells := range cellRows {
		rec, err := l.extractor.Extract(cells)
		if err != nil {
			st.rowsRejected++
			l.logger.Debug("row rejected", zap.Error(err))
			continue
		}
		if rec.PriceUnparsable {
			l.logger.Warn("price unparsable, substituting zero",
				zap.String("name", rec.DisplayName))
		}
		if st.index.Admit(rec) {
			st.records = append(st.records, rec)
			st.newThisIter++
		}
	}

	l.maybeSnapshot(ctx, driver, st)
	return stateDeciding, nil
}

func (l *Loop) decide(ctx context.Context, driver PageDriver, st *harvestState) (loopState, error) {
	height, err := driver.PageHeight(ctx)
	if err != nil {
		return stateDone, fmt.Errorf("measure page height: %w", err)
	}

	decision, err := st.detector.Observe(ctx, st.newThisIter, height, func(probeCtx context.Context) (int, error) {
		l.logger.Info("height stable, probing absolute bottom")
		if err := driver.ScrollToBottom(probeCtx); err != nil {
			return 0, fmt.Errorf("scroll to bottom: %w", err)
		}
		if err := sleepCtx(probeCtx, l.cfg.BottomSettle); err != nil {
			return 0, err
		}
		h, err := driver.PageHeight(probeCtx)
		if err != nil {
			return 0, fmt.Errorf("re-measure page height: %w", err)
		}
		return h, nil
	})
	if err != nil {
		return stateDone, err
	}

	l.logger.Info("iteration finished",
		zap.Int("iteration", st.detector.Iterations()),
		zap.Int("new_records", st.newThisIter),
		zap.Int("total_records", len(st.records)),
		zap.Int("page_height", height),
		zap.String("decision", decision.String()),
	)

	switch decision {
	case ConvergedComplete:
		return stateDone, nil
	case ConvergedExhausted:
		st.exhausted = true
		return stateDone, nil
	default:
		if err := sleepCtx(ctx, l.cfg.IterationPause); err != nil {
			return stateDone, err
		}
		return stateScrolling, nil
	}
}

// maybeSnapshot captures a diagnostic screenshot when the accumulated
// record count crosses a new multiple of SnapshotEvery. Failures are
// logged and never abort the loop.
func (l *Loop) maybeSnapshot(ctx context.Context, driver PageDriver, st *harvestState) {
	if l.snapshots == nil || l.cfg.SnapshotEvery <= 0 {
		return
	}
	bucket := len(st.records) / l.cfg.SnapshotEvery
	if bucket == 0 || bucket == st.lastSnapshot {
		return
	}
	st.lastSnapshot = bucket

	png, err := driver.Screenshot(ctx)
	if err != nil {
		l.logger.Warn("screenshot capture failed", zap.Error(err))
		return
	}
	name := fmt.Sprintf("scroll_%d_stocks.png", len(st.records))
	if _, err := l.snapshots.Save(ctx, name, png); err != nil {
		l.logger.Warn("screenshot save failed", zap.Error(err))
	}
}

// sleepCtx pauses for d or until the context ends.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("settle wait canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
