// Package delivery sequences persistence then notification over a
// finalized dataset.
package delivery

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/marketops/stock-harvester/internal/harvest"
)

// Pipeline runs the two delivery stages with independent failure
// classification: a persist failure aborts before notification is
// attempted, a notify failure leaves the persisted data standing.
type Pipeline struct {
	sink     harvest.RecordSink
	notifier harvest.Notifier
	clock    harvest.Clock
	logger   *zap.Logger
}

// New builds a Pipeline.
func New(sink harvest.RecordSink, notifier harvest.Notifier, clock harvest.Clock, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		sink:     sink,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
	}
}

// Deliver appends records to the sink, reads back the full artifact
// and sends it. Errors satisfy errors.Is against harvest.ErrPersist or
// harvest.ErrNotify so callers can distinguish "data captured but not
// emailed" from "nothing captured".
func (p *Pipeline) Deliver(ctx context.Context, records []harvest.StockRecord) error {
	if err := p.sink.Append(ctx, records); err != nil {
		return fmt.Errorf("%w: %v", harvest.ErrPersist, err)
	}
	p.logger.Info("records persisted", zap.Int("count", len(records)))

	artifact, err := p.sink.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("%w: read back artifact: %v", harvest.ErrNotify, err)
	}
	if err := p.notifier.Send(ctx, artifact, p.clock.Now()); err != nil {
		return fmt.Errorf("%w: %v", harvest.ErrNotify, err)
	}
	p.logger.Info("report delivered", zap.Int("artifact_bytes", len(artifact)))
	return nil
}
