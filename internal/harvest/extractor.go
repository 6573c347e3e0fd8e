package harvest

import (
	"strings"

	"github.com/shopspring/decimal"
)

// minRowCells is the number of cells a row needs to be extractable:
// name, price, change percent, volume, value.
const minRowCells = 5

// Extractor turns a rendered row's cell text into a StockRecord. It is
// a pure transformation apart from stamping CapturedAt.
type Extractor struct {
	clock Clock
}

// NewExtractor creates an Extractor using the given clock.
func NewExtractor(clock Clock) *Extractor {
	return &Extractor{clock: clock}
}

// Extract validates and normalizes one row. Rows with fewer than five
// cells fail with ErrMalformedRow, rows with a blank first cell with
// ErrEmptyIdentity. An unparsable price never fails extraction: the
// record carries a zero price with PriceUnparsable set.
func (e *Extractor) Extract(cells []string) (StockRecord, error) {
	if len(cells) < minRowCells {
		return StockRecord{}, ErrMalformedRow
	}
	name := strings.TrimSpace(cells[0])
	if name == "" {
		return StockRecord{}, ErrEmptyIdentity
	}

	price, unparsable := parsePrice(cells[1])

	return StockRecord{
		DisplayName:     name,
		Symbol:          deriveSymbol(name),
		Price:           price,
		PriceUnparsable: unparsable,
		ChangePercent:   strings.TrimSpace(cells[2]),
		Volume:          strings.TrimSpace(cells[3]),
		Value:           strings.TrimSpace(cells[4]),
		CapturedAt:      e.clock.Now(),
	}, nil
}

// deriveSymbol returns the second line of a multi-line display name,
// or the name itself when it has no line break.
func deriveSymbol(name string) string {
	if !strings.Contains(name, "\n") {
		return name
	}
	return strings.Split(name, "\n")[1]
}

// parsePrice strips thousands separators and parses the display text.
// Empty and non-numeric text are both treated as unparsable and map to
// zero; negative values are rejected the same way.
func parsePrice(text string) (decimal.Decimal, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	if cleaned == "" {
		return decimal.Zero, true
	}
	price, err := decimal.NewFromString(cleaned)
	if err != nil || price.IsNegative() {
		return decimal.Zero, true
	}
	return price, false
}
