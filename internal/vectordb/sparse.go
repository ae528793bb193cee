package vectordb

import (
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// SparseEntry is one (token_id, weight) pair of a learned-sparse document or
// query, per §3: token_id must be < vocab_size and weight > 0 to be kept.
type SparseEntry struct {
	TokenID uint32
	Weight  float32
}

// ScoredDoc is a (doc_id, score) search result, ordered by descending score.
type ScoredDoc struct {
	DocID uint64
	Score float32
}

// postingList holds one token's postings in strictly-ascending doc_id order,
// plus the block-max array maintained incrementally on append (§3, §4.2).
type postingList struct {
	docIDs    []uint64
	weights   []float32
	blockMax  []float32
}

func (p *postingList) len() int { return len(p.docIDs) }

// append adds one posting and extends/updates the block-max array. Callers
// guarantee docID is >= the list's current last doc_id (monotonic insert
// order, enforced by LearnedSparseIndex.Insert assigning ids sequentially).
func (p *postingList) append(docID uint64, weight float32, blockSize uint64) {
	p.docIDs = append(p.docIDs, docID)
	p.weights = append(p.weights, weight)

	idx := len(p.weights) - 1
	blockIdx := idx / int(blockSize)
	if blockIdx >= len(p.blockMax) {
		p.blockMax = append(p.blockMax, weight)
	} else if weight > p.blockMax[blockIdx] {
		p.blockMax[blockIdx] = weight
	}
}

func (p *postingList) globalMax() float32 {
	var max float32
	for _, m := range p.blockMax {
		if m > max {
			max = m
		}
	}
	return max
}

// SparseStats reports observable counters for a LearnedSparseIndex.
type SparseStats struct {
	DocCount              uint64
	ActiveDocs            uint64
	TotalPostings         uint64
	NonEmptyPostingLists  int
}

// LearnedSparseIndex is a per-token posting-list inverted index over
// float-weighted sparse entries, supporting an accumulator-based search and
// a Block-Max WAND top-k traversal (§4.2).
type LearnedSparseIndex struct {
	mu     sync.RWMutex
	cfg    *SparseConfig
	tokens map[uint32]*postingList

	docCount      uint64
	entryCounts   []int
	deleted       *bitset.BitSet
	totalPostings uint64
}

// NewLearnedSparseIndex creates an empty index for the given configuration.
func NewLearnedSparseIndex(cfg *SparseConfig) *LearnedSparseIndex {
	if cfg == nil {
		cfg = DefaultSparseConfig()
	}
	return &LearnedSparseIndex{
		cfg:     cfg,
		tokens:  make(map[uint32]*postingList),
		deleted: bitset.New(0),
	}
}

// Insert assigns the next doc_id, appends one posting per kept entry
// (dropping entries with weight <= 0 or token_id >= vocab_size), and
// increments doc_count only after every posting has been appended
// successfully — so a failed insert never leaves a partially-referenced
// doc_id behind (§4.2 Failures).
func (idx *LearnedSparseIndex) Insert(entries []SparseEntry) (uint64, error) {
	if uint64(len(entries)) > idx.cfg.MaxNonzeros {
		return 0, newErr(KindInvalidArgument, "entry count exceeds max_nonzeros")
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	docID := idx.docCount

	kept := 0
	for _, e := range entries {
		if e.Weight <= 0 || uint64(e.TokenID) >= idx.cfg.VocabSize {
			continue
		}
		pl, ok := idx.tokens[e.TokenID]
		if !ok {
			pl = &postingList{}
			idx.tokens[e.TokenID] = pl
		}
		pl.append(docID, e.Weight, idx.cfg.WANDBlockSize)
		kept++
	}

	idx.docCount++
	idx.entryCounts = append(idx.entryCounts, kept)
	idx.totalPostings += uint64(kept)

	return docID, nil
}

// Delete soft-deletes docID: postings are left in place and skipped during
// traversal (§4.2).
func (idx *LearnedSparseIndex) Delete(docID uint64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if docID >= idx.docCount {
		return newErr(KindNotFound, "doc_id does not exist")
	}
	if idx.deleted.Test(uint(docID)) {
		return newErr(KindNotFound, "doc_id already deleted")
	}
	idx.deleted.Set(uint(docID))
	return nil
}

// Stats returns the index's observable counters.
func (idx *LearnedSparseIndex) Stats() SparseStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	active := idx.docCount - uint64(idx.deleted.Count())
	nonEmpty := 0
	for _, pl := range idx.tokens {
		if pl.len() > 0 {
			nonEmpty++
		}
	}
	return SparseStats{
		DocCount:             idx.docCount,
		ActiveDocs:           active,
		TotalPostings:        idx.totalPostings,
		NonEmptyPostingLists: nonEmpty,
	}
}

// Search returns up to k (doc_id, score) pairs ordered by descending score,
// for the Block-Max WAND or accumulator algorithm depending on cfg.UseWAND.
func (idx *LearnedSparseIndex) Search(query []SparseEntry, k int) ([]ScoredDoc, error) {
	return idx.SearchWithThreshold(query, k, 0)
}

// SearchWithThreshold is Search with an additional score >= minScore filter,
// applied identically in both traversal modes (§4.2 Edge-case policies).
func (idx *LearnedSparseIndex) SearchWithThreshold(query []SparseEntry, k int, minScore float32) ([]ScoredDoc, error) {
	if k == 0 {
		return nil, newErr(KindInvalidArgument, "k must be non-zero")
	}
	if len(query) == 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.cfg.UseWAND {
		return idx.searchWAND(query, k, minScore)
	}
	return idx.searchAccumulator(query, k, minScore)
}

// searchAccumulator walks every query term's posting list and accumulates
// q_t * weight per doc_id in a hash map, skipping deleted docs, then
// heap-selects the top k (§4.2 "Accumulator mode").
func (idx *LearnedSparseIndex) searchAccumulator(query []SparseEntry, k int, minScore float32) ([]ScoredDoc, error) {
	acc := make(map[uint64]float32)

	for _, q := range query {
		if q.Weight <= 0 || uint64(q.TokenID) >= idx.cfg.VocabSize {
			continue
		}
		pl, ok := idx.tokens[q.TokenID]
		if !ok {
			continue
		}
		for i, docID := range pl.docIDs {
			if idx.deleted.Test(uint(docID)) {
				continue
			}
			acc[docID] += q.Weight * pl.weights[i]
		}
	}

	top := newTopKScores(k)
	for docID, score := range acc {
		if score >= minScore {
			top.offer(int(docID), score)
		}
	}

	results := top.sortedDescending()
	out := make([]ScoredDoc, len(results))
	for i, r := range results {
		out[i] = ScoredDoc{DocID: uint64(r.id), Score: r.score}
	}
	return out, nil
}
