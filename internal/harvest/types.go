// Package harvest defines the core types and interfaces for the
// scroll-and-harvest pipeline.
package harvest

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockRecord is one harvested table row after normalization.
type StockRecord struct {
	// DisplayName is the raw first-cell text, possibly multi-line.
	DisplayName string `json:"name"`
	// Symbol is the second line of DisplayName when present, otherwise
	// DisplayName verbatim.
	Symbol string `json:"symbol"`
	// Price is the parsed price. Unparsable display text maps to zero
	// with PriceUnparsable set.
	Price           decimal.Decimal `json:"price"`
	PriceUnparsable bool            `json:"price_unparsable,omitempty"`
	// ChangePercent, Volume and Value are kept as display text.
	ChangePercent string    `json:"change_percent"`
	Volume        string    `json:"volume"`
	Value         string    `json:"value"`
	CapturedAt    time.Time `json:"captured_at"`
}

// RunStatus represents the lifecycle state of a harvest run.
type RunStatus string

// Run status values persisted in the run store.
const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

// RunCounters tracks per-run harvest and delivery stats.
type RunCounters struct {
	RecordsHarvested int  `json:"records_harvested"`
	Iterations       int  `json:"iterations"`
	RowsRejected     int  `json:"rows_rejected"`
	Exhausted        bool `json:"exhausted"`
	Delivered        bool `json:"delivered"`
}

// Run is the metadata recorded for each triggered harvest.
type Run struct {
	ID        string      `json:"id"`
	Status    RunStatus   `json:"status"`
	Submitted time.Time   `json:"submitted_at"`
	Started   *time.Time  `json:"started_at,omitempty"`
	Finished  *time.Time  `json:"finished_at,omitempty"`
	ErrorText string      `json:"error_text,omitempty"`
	Counters  RunCounters `json:"counters"`
}

// QueueItem is what the trigger surface hands to the runner pool.
type QueueItem struct {
	RunID     string
	Submitted int64
}

// Result is the finalized outcome of one harvest loop execution.
type Result struct {
	// Records are in first-seen order, at most one per DisplayName.
	Records    []StockRecord
	Iterations int
	// RowsRejected counts malformed or identity-less rows skipped.
	RowsRejected int
	// Exhausted is set when the loop stopped at the iteration cap
	// rather than by convergence; the dataset may be incomplete.
	Exhausted bool
}
