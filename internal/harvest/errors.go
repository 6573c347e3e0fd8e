package harvest

import "errors"

// Sentinel errors classifying harvest and delivery failures. Per-row
// errors (ErrMalformedRow, ErrEmptyIdentity) are absorbed by the loop;
// the rest abort the current run or delivery stage.
var (
	// ErrDriverSetup means a browser session could not be acquired.
	ErrDriverSetup = errors.New("driver setup failed")
	// ErrNoRowsFound means the page never rendered a row within the
	// waiting timeout on the first iteration.
	ErrNoRowsFound = errors.New("no rows found")
	// ErrMalformedRow marks a rendered row with too few cells.
	ErrMalformedRow = errors.New("malformed row")
	// ErrEmptyIdentity marks a row whose first cell is blank.
	ErrEmptyIdentity = errors.New("empty row identity")
	// ErrEmptyResult means the loop finished without accumulating a
	// single record.
	ErrEmptyResult = errors.New("empty result")
	// ErrPersist means the sink write failed; notification is never
	// attempted on unpersisted data.
	ErrPersist = errors.New("persist failed")
	// ErrNotify means delivery failed after a successful persist; the
	// dataset is saved but undelivered.
	ErrNotify = errors.New("notify failed")
)
