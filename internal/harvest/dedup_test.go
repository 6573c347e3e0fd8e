package harvest

import (
	"fmt"
	"testing"
)

func TestIndexAdmitsDistinctNamesOnce(t *testing.T) {
	t.Parallel()

	idx := NewIndex()
	names := []string{"A", "B", "A", "C", "B", "A", "D"}
	var admitted []string
	for _, n := range names {
		if idx.Admit(StockRecord{DisplayName: n}) {
			admitted = append(admitted, n)
		}
	}

	want := []string{"A", "B", "C", "D"}
	if len(admitted) != len(want) {
		t.Fatalf("admitted %v, want %v", admitted, want)
	}
	for i, n := range want {
		if admitted[i] != n {
			t.Fatalf("admission order %v, want %v", admitted, want)
		}
	}
	if idx.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", idx.Len())
	}
}

func TestIndexRejectionDoesNotMutate(t *testing.T) {
	t.Parallel()

	idx := NewIndex()
	if !idx.Admit(StockRecord{DisplayName: "A"}) {
		t.Fatal("first admission should succeed")
	}
	for i := 0; i < 3; i++ {
		if idx.Admit(StockRecord{DisplayName: "A"}) {
			t.Fatalf("duplicate admitted on attempt %d", i)
		}
		if idx.Len() != 1 {
			t.Fatalf("Len() = %d after duplicate, want 1", idx.Len())
		}
	}
}

func TestIndexScalesWithManyKeys(t *testing.T) {
	t.Parallel()

	idx := NewIndex()
	for i := 0; i < 1000; i++ {
		if !idx.Admit(StockRecord{DisplayName: fmt.Sprintf("stock-%d", i)}) {
			t.Fatalf("fresh key %d rejected", i)
		}
	}
	if idx.Len() != 1000 {
		t.Fatalf("Len() = %d, want 1000", idx.Len())
	}
}
