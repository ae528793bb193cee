package vectordb

import (
	"bytes"
	"testing"
)

func deterministicVectors(seed uint64, n, d int) [][]float32 {
	rng := newXorshift64(seed)
	out := make([][]float32, n)
	for i := range out {
		out[i] = randomVector(rng, d)
	}
	return out
}

func TestLSHInsertAndSearchReturnsNearestFirst(t *testing.T) {
	idx, err := NewLSH(4, &LSHConfig{NumTables: 4, NumHashBits: 8, Seed: 1}, nil)
	if err != nil {
		t.Fatalf("NewLSH failed: %v", err)
	}

	target := []float32{1, 0, 0, 0}
	far := []float32{0, 0, 0, 1}
	idA, _ := idx.Insert(target, nil)
	idB, _ := idx.Insert(far, nil)

	results, err := idx.Search(target, 2, Metric(MetricEuclideanSq), nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) == 0 || results[0].ID != idA {
		t.Fatalf("expected the identical vector to rank first, got %+v", results)
	}
	if results[0].Distance != 0 {
		t.Errorf("expected distance 0 for the identical vector, got %f", results[0].Distance)
	}
	_ = idB
}

func TestLSHSearchSkipsDeleted(t *testing.T) {
	idx, _ := NewLSH(2, &LSHConfig{NumTables: 2, NumHashBits: 4, Seed: 2}, nil)
	id, _ := idx.Insert([]float32{1, 1}, nil)
	idx.Insert([]float32{1, 1}, nil)

	if err := idx.Delete(id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	results, err := idx.Search([]float32{1, 1}, 10, Metric(MetricEuclideanSq), nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for _, r := range results {
		if r.ID == id {
			t.Errorf("deleted id %d must not be returned", id)
		}
	}
}

func TestLSHSearchResultsSortedAscending(t *testing.T) {
	idx, _ := NewLSH(1, &LSHConfig{NumTables: 4, NumHashBits: 6, Seed: 3}, nil)
	for _, v := range []float32{0, 1, 2, 3, 4} {
		idx.Insert([]float32{v}, nil)
	}

	results, err := idx.Search([]float32{0}, 5, Metric(MetricEuclideanSq), nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Fatalf("results not sorted ascending: %+v", results)
		}
	}
}

func TestLSHMetadataFilterScenario(t *testing.T) {
	idx, err := NewLSH(8, DefaultLSHConfig(), nil)
	if err != nil {
		t.Fatalf("NewLSH failed: %v", err)
	}

	vectors := deterministicVectors(42, 10, 8)
	for i, v := range vectors {
		category := "odd"
		if i%2 == 0 {
			category = "even"
		}
		if _, err := idx.Insert(v, MetaList{{Key: "category", Value: category}}); err != nil {
			t.Fatalf("Insert %d failed: %v", i, err)
		}
	}

	filter := &Filter{Key: "category", Value: "even"}
	results, err := idx.Search(vectors[0], 10, Metric(MetricEuclideanSq), filter)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one even-category result")
	}
	for _, r := range results {
		if r.ID%2 != 0 {
			t.Errorf("filtered search returned an odd-indexed id: %d", r.ID)
		}
	}
}

func TestLSHUpdateMovesBuckets(t *testing.T) {
	idx, _ := NewLSH(2, &LSHConfig{NumTables: 2, NumHashBits: 4, Seed: 5}, nil)
	id, _ := idx.Insert([]float32{1, 0}, nil)

	if err := idx.Update(id, []float32{0, 1}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	vec, err := idx.storage.GetData(id)
	if err != nil {
		t.Fatalf("GetData failed: %v", err)
	}
	if vec[0] != 0 || vec[1] != 1 {
		t.Errorf("expected updated data [0 1], got %v", vec)
	}

	results, err := idx.Search([]float32{0, 1}, 1, Metric(MetricEuclideanSq), nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != id {
		t.Errorf("expected the updated vector to be found at its new position, got %+v", results)
	}
}

func TestLSHUpdateRejectsDeleted(t *testing.T) {
	idx, _ := NewLSH(2, &LSHConfig{NumTables: 2, NumHashBits: 4, Seed: 6}, nil)
	id, _ := idx.Insert([]float32{1, 0}, nil)
	idx.Delete(id)

	if err := idx.Update(id, []float32{0, 1}); KindOf(err) != KindNotFound {
		t.Errorf("expected KindNotFound updating a deleted id, got %v", KindOf(err))
	}
}

func TestLSHSaveLoadScenario(t *testing.T) {
	const d = 8
	cfg := &LSHConfig{NumTables: 4, NumHashBits: 10, Seed: 99}
	idx, err := NewLSH(d, cfg, nil)
	if err != nil {
		t.Fatalf("NewLSH failed: %v", err)
	}

	vectors := deterministicVectors(123, 10, d)
	for _, v := range vectors {
		if _, err := idx.Insert(v, nil); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	query := make([]float32, d)
	metric := Metric(MetricEuclideanSq)
	before, err := idx.Search(query, 5, metric, nil)
	if err != nil {
		t.Fatalf("pre-save search failed: %v", err)
	}

	var buf bytes.Buffer
	if err := idx.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadLSH(&buf, d)
	if err != nil {
		t.Fatalf("LoadLSH failed: %v", err)
	}

	after, err := loaded.Search(query, 5, metric, nil)
	if err != nil {
		t.Fatalf("post-load search failed: %v", err)
	}

	beforeIDs := map[int]bool{}
	for _, r := range before {
		beforeIDs[r.ID] = true
	}
	afterIDs := map[int]bool{}
	for _, r := range after {
		afterIDs[r.ID] = true
	}
	if len(beforeIDs) != len(afterIDs) {
		t.Fatalf("result set size differs after reload: %d vs %d", len(beforeIDs), len(afterIDs))
	}
	for id := range beforeIDs {
		if !afterIDs[id] {
			t.Errorf("id %d present before save but missing after load", id)
		}
	}
}

func TestLSHRangeSearchRespectsRadius(t *testing.T) {
	// In one dimension every positive value has the same sign against each
	// hyperplane, so all four vectors share the query's bucket in every table.
	idx, _ := NewLSH(1, &LSHConfig{NumTables: 4, NumHashBits: 6, Seed: 8}, nil)
	for _, v := range []float32{1, 2, 3, 10} {
		idx.Insert([]float32{v}, nil)
	}

	results, err := idx.RangeSearch([]float32{1}, 4.0, 10, Metric(MetricEuclideanSq), nil)
	if err != nil {
		t.Fatalf("RangeSearch failed: %v", err)
	}
	for _, r := range results {
		if r.Distance > 4.0 {
			t.Errorf("result %+v exceeds requested radius", r)
		}
	}
	if len(results) != 3 {
		t.Errorf("expected 3 results within radius 4 of 1 among {1,2,3,10}, got %d", len(results))
	}
}
