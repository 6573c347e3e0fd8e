package harvest

import (
	"context"
	"time"
)

// PageDriver is the narrow capability interface over one exclusive
// browser session. Implementations are not safe for concurrent use;
// each harvest run owns exactly one driver.
type PageDriver interface {
	Navigate(ctx context.Context, url string) error
	// WaitForRows blocks until at least one table row is queryable or
	// the context ends.
	WaitForRows(ctx context.Context) error
	// RowCells returns the cell text of every currently rendered row.
	RowCells(ctx context.Context) ([][]string, error)
	// ScrollAdvance scrolls down by one viewport height.
	ScrollAdvance(ctx context.Context) error
	// ScrollToBottom jumps to the absolute bottom of the page.
	ScrollToBottom(ctx context.Context) error
	PageHeight(ctx context.Context) (int, error)
	// Screenshot captures the current viewport as PNG, best-effort.
	Screenshot(ctx context.Context) ([]byte, error)
	// Close releases the browser session. Safe to call more than once.
	Close()
}

// DriverFactory hands out a fresh session per run.
type DriverFactory interface {
	NewSession(ctx context.Context) (PageDriver, error)
}

// Prober checks that the target page answers at all before a browser
// session is spent on it.
type Prober interface {
	Check(ctx context.Context, url string) error
}

// RecordSink is the durable append-only store for finalized datasets.
type RecordSink interface {
	// Append writes records in the fixed column order, emitting the
	// header only if the sink did not previously exist.
	Append(ctx context.Context, records []StockRecord) error
	// ReadAll returns the full current sink contents.
	ReadAll(ctx context.Context) ([]byte, error)
}

// Notifier delivers the persisted artifact to the recipient.
type Notifier interface {
	Send(ctx context.Context, attachment []byte, generatedAt time.Time) error
}

// Deliverer sequences persistence then notification over a finalized
// dataset.
type Deliverer interface {
	Deliver(ctx context.Context, records []StockRecord) error
}

// SnapshotStore persists diagnostic screenshots keyed by name.
type SnapshotStore interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// RunStore persists run metadata for the trigger surface.
type RunStore interface {
	CreateRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, runID string) (Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status RunStatus, errText string, counters RunCounters) error
}

// Queue hands queued runs to the runner pool.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
