// Package csvfile implements the durable record sink as an append-only
// CSV file.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/marketops/stock-harvester/internal/harvest"
)

// header is the fixed column order of the sink.
var header = []string{"timestamp", "name", "symbol", "price", "change_percent", "volume", "value"}

const timestampLayout = "2006-01-02 15:04:05"

// Sink appends finalized datasets to one CSV file across runs. The
// header is written only when the file does not already exist.
type Sink struct {
	path string
	mu   sync.Mutex
}

// New validates the path and ensures its parent directory exists.
func New(path string) (*Sink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sink path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create sink directory: %w", err)
		}
	}
	return &Sink{path: path}, nil
}

// Path returns the sink file location.
func (s *Sink) Path() string {
	return s.path
}

// Append writes records in the fixed column order. Rows are flushed
// and synced before returning so a reported success means durable data.
func (s *Sink) Append(ctx context.Context, records []harvest.StockRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("append canceled: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, statErr := os.Stat(s.path)
	writeHeader := os.IsNotExist(statErr)
	if statErr != nil && !writeHeader {
		return fmt.Errorf("stat sink: %w", statErr)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open sink: %w", err)
	}
	defer f.Close() //nolint:errcheck // close after explicit sync below

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for _, rec := range records {
		row := []string{
			rec.CapturedAt.Format(timestampLayout),
			rec.DisplayName,
			rec.Symbol,
			rec.Price.String(),
			rec.ChangePercent,
			rec.Volume,
			rec.Value,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush sink: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync sink: %w", err)
	}
	return nil
}

// ReadAll returns the full current sink contents for delivery.
func (s *Sink) ReadAll(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("read canceled: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read sink: %w", err)
	}
	return data, nil
}
