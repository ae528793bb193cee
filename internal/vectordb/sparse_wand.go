package vectordb

import "sort"

// cursor walks one query term's posting list, tracking the position of its
// next not-yet-considered posting. doc() returns the posting's doc_id, or
// an exhausted sentinel once pos has walked off the end of the list.
type cursor struct {
	term            uint32
	pl              *postingList
	pos             int
	queryWeight     float32
	maxContribution float32 // q_t * global_max_weight(term)
}

const exhaustedDoc = ^uint64(0) // sorts to "infinity"

func (c *cursor) doc() uint64 {
	if c.pos >= c.pl.len() {
		return exhaustedDoc
	}
	return c.pl.docIDs[c.pos]
}

func (c *cursor) weight() float32 {
	return c.pl.weights[c.pos]
}

// advanceTo moves the cursor forward to the first posting with doc_id >=
// target, using block-level skip: if the current block's last doc_id is
// still below target, the whole block is skipped before a linear scan
// resumes within the block that can contain target (§4.2 step 5).
func (c *cursor) advanceTo(target uint64, blockSize int) {
	for c.pos < c.pl.len() && c.pl.docIDs[c.pos] < target {
		blockIdx := c.pos / blockSize
		lastOfBlock := (blockIdx+1)*blockSize - 1
		if lastOfBlock < c.pl.len() && c.pl.docIDs[lastOfBlock] < target {
			c.pos = lastOfBlock + 1
			continue
		}
		c.pos++
	}
}

// searchWAND runs the Block-Max WAND top-k traversal of §4.2 over the
// query's terms. Callers hold idx.mu for reading.
func (idx *LearnedSparseIndex) searchWAND(query []SparseEntry, k int, minScore float32) ([]ScoredDoc, error) {
	cursors := make([]*cursor, 0, len(query))
	for _, q := range query {
		if q.Weight <= 0 || uint64(q.TokenID) >= idx.cfg.VocabSize {
			continue
		}
		pl, ok := idx.tokens[q.TokenID]
		if !ok || pl.len() == 0 {
			continue
		}
		cursors = append(cursors, &cursor{
			term:            q.TokenID,
			pl:              pl,
			queryWeight:     q.Weight,
			maxContribution: q.Weight * pl.globalMax(),
		})
	}
	if len(cursors) == 0 {
		return nil, nil
	}

	blockSize := int(idx.cfg.WANDBlockSize)
	top := newTopKScores(k)

	for {
		sort.Slice(cursors, func(i, j int) bool { return cursors[i].doc() < cursors[j].doc() })
		if cursors[0].doc() == exhaustedDoc {
			break
		}

		theta := minScore
		if top.full() && top.worst() > theta {
			theta = top.worst()
		}

		var running float32
		pivot := -1
		for i, c := range cursors {
			if c.doc() == exhaustedDoc {
				break
			}
			running += c.maxContribution
			if running > theta {
				pivot = i
				break
			}
		}
		if pivot == -1 {
			break
		}

		dStar := cursors[pivot].doc()
		if cursors[0].doc() == dStar {
			if !idx.deleted.Test(uint(dStar)) {
				var score float32
				for _, c := range cursors {
					if c.doc() == dStar {
						score += c.queryWeight * c.weight()
					}
				}
				if score >= minScore {
					top.offer(int(dStar), score)
				}
			}
			for _, c := range cursors {
				if c.doc() == dStar {
					c.pos++
				}
			}
		} else {
			for _, c := range cursors {
				if c.doc() < dStar {
					c.advanceTo(dStar, blockSize)
				}
			}
		}
	}

	results := top.sortedDescending()
	out := make([]ScoredDoc, len(results))
	for i, r := range results {
		out[i] = ScoredDoc{DocID: uint64(r.id), Score: r.score}
	}
	return out, nil
}
