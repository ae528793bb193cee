package vectordb

import "testing"

func TestMetaListGetAndMatches(t *testing.T) {
	m := MetaList{{Key: "category", Value: "even"}, {Key: "name", Value: "doc0"}}

	v, ok := m.Get("category")
	if !ok || v != "even" {
		t.Errorf("expected category=even, got %q ok=%v", v, ok)
	}
	if !m.Matches("name", "doc0") {
		t.Error("expected Matches to find name=doc0")
	}
	if m.Matches("category", "odd") {
		t.Error("did not expect Matches to succeed on a wrong value")
	}
	if _, ok := m.Get("missing"); ok {
		t.Error("expected Get to report absent for a missing key")
	}
}

func TestMemoryColumnStoreAddAndGet(t *testing.T) {
	s := NewMemoryColumnStore()

	id, err := s.Add([]float32{1, 2, 3}, MetaList{{Key: "k", Value: "v"}})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if id != 0 {
		t.Errorf("expected first id to be 0, got %d", id)
	}

	vec, err := s.GetData(id)
	if err != nil {
		t.Fatalf("GetData failed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 1 {
		t.Errorf("unexpected vector %v", vec)
	}

	meta, err := s.GetMetadata(id)
	if err != nil {
		t.Fatalf("GetMetadata failed: %v", err)
	}
	if !meta.Matches("k", "v") {
		t.Error("expected metadata round-trip to preserve k=v")
	}
}

func TestMemoryColumnStoreDeleteIsIdempotentError(t *testing.T) {
	s := NewMemoryColumnStore()
	id, _ := s.Add([]float32{1}, nil)

	if err := s.MarkDeleted(id); err != nil {
		t.Fatalf("first MarkDeleted failed: %v", err)
	}
	if err := s.MarkDeleted(id); KindOf(err) != KindNotFound {
		t.Errorf("expected KindNotFound on double delete, got %v", KindOf(err))
	}

	deleted, err := s.IsDeleted(id)
	if err != nil || !deleted {
		t.Errorf("expected id to be deleted, err=%v deleted=%v", err, deleted)
	}
}

func TestMemoryColumnStoreUnknownIDIsNotFound(t *testing.T) {
	s := NewMemoryColumnStore()
	if _, err := s.GetData(42); KindOf(err) != KindNotFound {
		t.Errorf("expected KindNotFound for an unknown id, got %v", KindOf(err))
	}
}

func TestMemoryColumnStoreAddCopiesInput(t *testing.T) {
	s := NewMemoryColumnStore()
	vec := []float32{1, 2, 3}
	id, _ := s.Add(vec, nil)

	vec[0] = 999
	stored, _ := s.GetData(id)
	if stored[0] == 999 {
		t.Error("expected Add to defensively copy the input vector")
	}
}
