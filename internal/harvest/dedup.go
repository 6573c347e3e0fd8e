package harvest

// Index tracks which logical records have already been captured across
// scroll iterations. Identity is the exact DisplayName string. It is
// the single source of truth for "is this a new row", consulted by
// both accumulation and the convergence detector's new-record counter.
type Index struct {
	seen map[string]struct{}
}

// NewIndex creates an empty dedup index.
func NewIndex() *Index {
	return &Index{seen: make(map[string]struct{})}
}

// Admit returns true and records the key if the record's DisplayName
// is new; it returns false without mutation when already seen.
func (i *Index) Admit(rec StockRecord) bool {
	if _, ok := i.seen[rec.DisplayName]; ok {
		return false
	}
	i.seen[rec.DisplayName] = struct{}{}
	return true
}

// Len reports how many distinct records have been admitted.
func (i *Index) Len() int {
	return len(i.seen)
}
