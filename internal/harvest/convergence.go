package harvest

import "context"

// Decision is the convergence detector's verdict for one iteration.
type Decision int

// Decisions returned by Detector.Observe.
const (
	// Continue means more content may still appear.
	Continue Decision = iota
	// ConvergedComplete means no further new rows will appear.
	ConvergedComplete
	// ConvergedExhausted means the iteration cap was hit before the
	// page stabilized; the accumulated dataset may be incomplete.
	ConvergedExhausted
)

// String implements fmt.Stringer for metrics labels and logs.
func (d Decision) String() string {
	switch d {
	case ConvergedComplete:
		return "complete"
	case ConvergedExhausted:
		return "exhausted"
	default:
		return "continue"
	}
}

// ConvergenceConfig holds the three tunable termination thresholds.
type ConvergenceConfig struct {
	// NoNewRecordLimit is how many consecutive iterations without a
	// newly admitted record signal the end of the list.
	NoNewRecordLimit int
	// StableHeightLimit is how many consecutive unchanged page-height
	// readings trigger a forced scroll-to-bottom probe.
	StableHeightLimit int
	// MaxIterations bounds worst-case runtime against a page that
	// never stabilizes.
	MaxIterations int
}

func (c ConvergenceConfig) withDefaults() ConvergenceConfig {
	if c.NoNewRecordLimit <= 0 {
		c.NoNewRecordLimit = 5
	}
	if c.StableHeightLimit <= 0 {
		c.StableHeightLimit = 3
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = 50
	}
	return c
}

// Detector decides, from page-height and record-count signals, whether
// the page has more content to reveal. Neither signal alone is
// reliable: a slow network produces false-stable height readings, and
// height can keep changing while only duplicate rows render. State is
// run-local; one Detector serves exactly one harvest.
type Detector struct {
	cfg                ConvergenceConfig
	lastPageHeight     int
	stableHeightStreak int
	noNewRecordStreak  int
	iterations         int
}

// NewDetector creates a Detector, applying defaults for zero-valued
// thresholds.
func NewDetector(cfg ConvergenceConfig) *Detector {
	return &Detector{cfg: cfg.withDefaults()}
}

// Iterations reports how many observations have been made.
func (d *Detector) Iterations() int {
	return d.iterations
}

// Observe records one iteration's signals and returns the decision.
// remeasure, when non-nil, is invoked at most once per call after the
// height-stability streak crosses its limit; it must force a scroll to
// the absolute bottom and return the re-measured page height. Errors
// from remeasure abort the observation.
func (d *Detector) Observe(
	ctx context.Context,
	newRecords int,
	currentHeight int,
	remeasure func(context.Context) (int, error),
) (Decision, error) {
	d.iterations++

	if newRecords == 0 {
		d.noNewRecordStreak++
	} else {
		d.noNewRecordStreak = 0
	}
	if currentHeight == d.lastPageHeight {
		d.stableHeightStreak++
	} else {
		d.stableHeightStreak = 0
	}

	decision := Continue
	switch {
	case d.noNewRecordStreak >= d.cfg.NoNewRecordLimit:
		// Primary signal: no new logical rows across the full streak.
		decision = ConvergedComplete
	case d.stableHeightStreak >= d.cfg.StableHeightLimit && remeasure != nil:
		probed, err := remeasure(ctx)
		if err != nil {
			return Continue, err
		}
		if probed == currentHeight {
			decision = ConvergedComplete
		} else {
			d.stableHeightStreak = 0
			currentHeight = probed
		}
	}

	if decision == Continue && d.iterations >= d.cfg.MaxIterations {
		decision = ConvergedExhausted
	}

	d.lastPageHeight = currentHeight
	return decision, nil
}
