package vectordb

import (
	"bytes"
	"testing"
)

func newTestSparseIndex(useWAND bool) *LearnedSparseIndex {
	cfg := &SparseConfig{VocabSize: 1000, MaxNonzeros: 16, UseWAND: useWAND, WANDBlockSize: 2}
	return NewLearnedSparseIndex(cfg)
}

func insertScenarioDocs(t *testing.T, idx *LearnedSparseIndex) {
	t.Helper()
	docs := [][]SparseEntry{
		{{TokenID: 10, Weight: 1.0}, {TokenID: 20, Weight: 0.5}},
		{{TokenID: 10, Weight: 0.2}, {TokenID: 30, Weight: 0.9}},
		{{TokenID: 40, Weight: 0.7}, {TokenID: 50, Weight: 0.3}},
	}
	for i, entries := range docs {
		id, err := idx.Insert(entries)
		if err != nil {
			t.Fatalf("Insert doc%d failed: %v", i, err)
		}
		if id != uint64(i) {
			t.Fatalf("expected doc_id %d, got %d", i, id)
		}
	}
}

func TestLearnedSparseSmallScenarioWAND(t *testing.T) {
	idx := newTestSparseIndex(true)
	insertScenarioDocs(t, idx)

	query := []SparseEntry{{TokenID: 10, Weight: 1.0}, {TokenID: 20, Weight: 1.0}}
	results, err := idx.Search(query, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d: %+v", len(results), results)
	}
	if results[0].DocID != 0 || results[0].Score != 1.5 {
		t.Errorf("expected top result doc0 score 1.5, got %+v", results[0])
	}
	if results[1].DocID != 1 {
		t.Errorf("expected second result doc1, got %+v", results[1])
	}
}

func TestLearnedSparseSmallScenarioAccumulatorMatchesWAND(t *testing.T) {
	query := []SparseEntry{{TokenID: 10, Weight: 1.0}, {TokenID: 20, Weight: 1.0}}

	wandIdx := newTestSparseIndex(true)
	insertScenarioDocs(t, wandIdx)
	wandResults, err := wandIdx.Search(query, 10)
	if err != nil {
		t.Fatalf("WAND search failed: %v", err)
	}

	accIdx := newTestSparseIndex(false)
	insertScenarioDocs(t, accIdx)
	accResults, err := accIdx.Search(query, 10)
	if err != nil {
		t.Fatalf("accumulator search failed: %v", err)
	}

	if len(wandResults) != len(accResults) {
		t.Fatalf("result set size differs: wand=%d acc=%d", len(wandResults), len(accResults))
	}
	wandSet := map[uint64]float32{}
	for _, r := range wandResults {
		wandSet[r.DocID] = r.Score
	}
	for _, r := range accResults {
		score, ok := wandSet[r.DocID]
		if !ok || score != r.Score {
			t.Errorf("accumulator result %+v not matched by WAND result set", r)
		}
	}
}

func TestLearnedSparseThresholdFilter(t *testing.T) {
	idx := newTestSparseIndex(true)
	if _, err := idx.Insert([]SparseEntry{{TokenID: 10, Weight: 1.0}}); err != nil {
		t.Fatalf("insert doc0 failed: %v", err)
	}
	if _, err := idx.Insert([]SparseEntry{{TokenID: 10, Weight: 0.1}}); err != nil {
		t.Fatalf("insert doc1 failed: %v", err)
	}

	results, err := idx.SearchWithThreshold([]SparseEntry{{TokenID: 10, Weight: 1.0}}, 2, 0.5)
	if err != nil {
		t.Fatalf("SearchWithThreshold failed: %v", err)
	}
	if len(results) != 1 || results[0].DocID != 0 || results[0].Score != 1.0 {
		t.Errorf("expected exactly [(0, 1.0)], got %+v", results)
	}
}

func TestLearnedSparseDeleteEffect(t *testing.T) {
	idx := newTestSparseIndex(true)
	idx.Insert([]SparseEntry{{TokenID: 10, Weight: 1.0}})
	idx.Insert([]SparseEntry{{TokenID: 10, Weight: 1.0}})

	if err := idx.Delete(0); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	results, err := idx.Search([]SparseEntry{{TokenID: 10, Weight: 1.0}}, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for _, r := range results {
		if r.DocID == 0 {
			t.Errorf("deleted doc 0 must never be returned, got %+v", results)
		}
	}

	if got := idx.Stats().ActiveDocs; got != 1 {
		t.Errorf("expected 1 active doc after delete, got %d", got)
	}

	if err := idx.Delete(0); KindOf(err) != KindNotFound {
		t.Errorf("expected KindNotFound on re-delete, got %v", KindOf(err))
	}
}

func TestLearnedSparseInsertRejectsTooManyEntries(t *testing.T) {
	idx := newTestSparseIndex(true)
	entries := make([]SparseEntry, 17)
	for i := range entries {
		entries[i] = SparseEntry{TokenID: uint32(i), Weight: 1.0}
	}
	if _, err := idx.Insert(entries); KindOf(err) != KindInvalidArgument {
		t.Errorf("expected KindInvalidArgument for an oversized insert, got %v", KindOf(err))
	}
	if idx.Stats().DocCount != 0 {
		t.Errorf("a rejected insert must not advance doc_count")
	}
}

func TestLearnedSparseInsertIgnoresOutOfVocabAndNonPositiveWeight(t *testing.T) {
	idx := newTestSparseIndex(true)
	docID, err := idx.Insert([]SparseEntry{
		{TokenID: 10, Weight: 1.0},
		{TokenID: 9999, Weight: 1.0}, // out of vocab, dropped
		{TokenID: 20, Weight: 0},     // non-positive, dropped
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	stats := idx.Stats()
	if stats.TotalPostings != 1 {
		t.Errorf("expected exactly 1 kept posting, got %d", stats.TotalPostings)
	}
	_ = docID
}

func TestLearnedSparsePostingListDocIDsStrictlyAscending(t *testing.T) {
	idx := newTestSparseIndex(true)
	for i := 0; i < 10; i++ {
		idx.Insert([]SparseEntry{{TokenID: 1, Weight: 1.0}})
	}
	pl := idx.tokens[1]
	for i := 1; i < pl.len(); i++ {
		if pl.docIDs[i] <= pl.docIDs[i-1] {
			t.Fatalf("doc_ids not strictly ascending at %d: %v", i, pl.docIDs)
		}
	}
}

func TestLearnedSparseBlockMaxUpperBound(t *testing.T) {
	idx := newTestSparseIndex(true)
	weights := []float32{0.1, 0.9, 0.3, 0.2, 0.8}
	for _, w := range weights {
		idx.Insert([]SparseEntry{{TokenID: 1, Weight: w}})
	}
	pl := idx.tokens[1]
	blockSize := int(idx.cfg.WANDBlockSize)
	for i, bm := range pl.blockMax {
		lo := i * blockSize
		hi := lo + blockSize
		if hi > pl.len() {
			hi = pl.len()
		}
		var want float32
		for _, w := range pl.weights[lo:hi] {
			if w > want {
				want = w
			}
		}
		if bm < want {
			t.Errorf("block_max[%d]=%f is below observed max %f", i, bm, want)
		}
	}
}

func TestLearnedSparseQueryEmptyReturnsEmpty(t *testing.T) {
	idx := newTestSparseIndex(true)
	idx.Insert([]SparseEntry{{TokenID: 1, Weight: 1.0}})
	results, err := idx.Search(nil, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty results for an empty query, got %+v", results)
	}
}

func TestLearnedSparseSaveLoadRoundTrip(t *testing.T) {
	idx := newTestSparseIndex(true)
	insertScenarioDocs(t, idx)
	idx.Delete(2)

	var buf bytes.Buffer
	if err := idx.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadLearnedSparseIndex(&buf)
	if err != nil {
		t.Fatalf("LoadLearnedSparseIndex failed: %v", err)
	}

	query := []SparseEntry{{TokenID: 10, Weight: 1.0}, {TokenID: 20, Weight: 1.0}}
	before, err := idx.Search(query, 10)
	if err != nil {
		t.Fatalf("pre-save search failed: %v", err)
	}
	after, err := loaded.Search(query, 10)
	if err != nil {
		t.Fatalf("post-load search failed: %v", err)
	}
	if len(before) != len(after) {
		t.Fatalf("result count differs after reload: %d vs %d", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("result %d differs after reload: %+v vs %+v", i, before[i], after[i])
		}
	}

	if loaded.Stats() != idx.Stats() {
		t.Errorf("stats differ after reload: %+v vs %+v", loaded.Stats(), idx.Stats())
	}
}

func TestLoadLearnedSparseIndexRejectsBadMagic(t *testing.T) {
	buf := bytes.NewBufferString("definitely not a sparse index file")
	_, err := LoadLearnedSparseIndex(buf)
	if KindOf(err) != KindCorrupt {
		t.Errorf("expected KindCorrupt, got %v", KindOf(err))
	}
}
