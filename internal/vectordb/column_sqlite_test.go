package vectordb

import (
	"path/filepath"
	"testing"
)

func TestSQLiteColumnStoreAddGetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.db")
	s, err := NewSQLiteColumnStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteColumnStore failed: %v", err)
	}
	defer s.Close()

	id, err := s.Add([]float32{1, 2, 3}, MetaList{{Key: "category", Value: "even"}})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	vec, err := s.GetData(id)
	if err != nil {
		t.Fatalf("GetData failed: %v", err)
	}
	if len(vec) != 3 || vec[1] != 2 {
		t.Errorf("unexpected vector round-trip: %v", vec)
	}

	meta, err := s.GetMetadata(id)
	if err != nil {
		t.Fatalf("GetMetadata failed: %v", err)
	}
	if !meta.Matches("category", "even") {
		t.Errorf("expected metadata round-trip, got %+v", meta)
	}
}

func TestSQLiteColumnStoreDeleteAndFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.db")
	s, err := NewSQLiteColumnStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteColumnStore failed: %v", err)
	}
	defer s.Close()

	var ids []int
	for i := 0; i < 4; i++ {
		category := "odd"
		if i%2 == 0 {
			category = "even"
		}
		id, err := s.Add([]float32{float32(i)}, MetaList{{Key: "category", Value: category}})
		if err != nil {
			t.Fatalf("Add %d failed: %v", i, err)
		}
		ids = append(ids, id)
	}

	if err := s.MarkDeleted(ids[0]); err != nil {
		t.Fatalf("MarkDeleted failed: %v", err)
	}
	deleted, err := s.IsDeleted(ids[0])
	if err != nil || !deleted {
		t.Errorf("expected id %d to be deleted, err=%v deleted=%v", ids[0], err, deleted)
	}
	if err := s.MarkDeleted(ids[0]); KindOf(err) != KindNotFound {
		t.Errorf("expected KindNotFound on re-delete, got %v", KindOf(err))
	}

	evens, err := s.FilteredIDs("category", "even")
	if err != nil {
		t.Fatalf("FilteredIDs failed: %v", err)
	}
	for id := range evens {
		if id%2 != 0 {
			t.Errorf("FilteredIDs returned an odd id for category=even: %d", id)
		}
	}
	if len(evens) != 2 {
		t.Errorf("expected 2 even ids, got %d", len(evens))
	}
}

func TestSQLiteColumnStoreUpdateData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.db")
	s, err := NewSQLiteColumnStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteColumnStore failed: %v", err)
	}
	defer s.Close()

	id, _ := s.Add([]float32{1}, nil)
	if err := s.UpdateData(id, []float32{9}); err != nil {
		t.Fatalf("UpdateData failed: %v", err)
	}
	vec, err := s.GetData(id)
	if err != nil || vec[0] != 9 {
		t.Errorf("expected updated vector [9], got %v err=%v", vec, err)
	}

	if err := s.UpdateData(id+100, []float32{1}); KindOf(err) != KindNotFound {
		t.Errorf("expected KindNotFound for an unknown id, got %v", KindOf(err))
	}
}
