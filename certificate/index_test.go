package certificate

import "testing"

// idOnlyCert is a minimal Certificate stub for Index tests; only ID matters
// for ordering/removal.
type idOnlyCert struct{ id ID }

func (c idOnlyCert) ID() ID                                  { return c.id }
func (c idOnlyCert) Endpoints() (PointRef, PointRef)         { return nil, nil }
func (c idOnlyCert) FailureTimeAtCreation() (float64, bool)  { return 0, false }
func (c idOnlyCert) FailureTime(now float64) (float64, bool) { return 0, false }
func (c idOnlyCert) EvaluateValidity(now float64) bool       { return true }
func (c idOnlyCert) Dispose()                                {}

func TestIndex_InsertOrdersById(t *testing.T) {
	idx := NewIndex()
	idx.Insert(idOnlyCert{id: 3})
	idx.Insert(idOnlyCert{id: 1})
	idx.Insert(idOnlyCert{id: 2})

	all := idx.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 certificates, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].ID() >= all[i].ID() {
			t.Errorf("index not ordered by id: %v", all)
		}
	}
}

func TestIndex_InsertDuplicateIsNoOp(t *testing.T) {
	idx := NewIndex()
	idx.Insert(idOnlyCert{id: 1})
	idx.Insert(idOnlyCert{id: 1})

	if idx.Len() != 1 {
		t.Fatalf("expected 1 certificate after duplicate insert, got %d", idx.Len())
	}
}

func TestIndex_RemoveAndContains(t *testing.T) {
	idx := NewIndex()
	idx.Insert(idOnlyCert{id: 1})
	idx.Insert(idOnlyCert{id: 2})

	if !idx.Contains(1) {
		t.Fatalf("expected Contains(1)=true")
	}

	removed, ok := idx.Remove(1)
	if !ok || removed.ID() != 1 {
		t.Fatalf("Remove(1) = %v, %v", removed, ok)
	}
	if idx.Contains(1) {
		t.Errorf("expected Contains(1)=false after removal")
	}
	if idx.Len() != 1 {
		t.Errorf("expected 1 remaining certificate, got %d", idx.Len())
	}
}

func TestIndex_RemoveMissingReturnsFalse(t *testing.T) {
	idx := NewIndex()
	idx.Insert(idOnlyCert{id: 1})

	_, ok := idx.Remove(99)
	if ok {
		t.Errorf("expected Remove(99) to report not-found")
	}
}
