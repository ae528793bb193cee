package vectordb

import (
	"container/heap"

	"github.com/chewxy/math32"
)

// scoredItem is a (id, score) pair ordered by descending score — used by
// LearnedSparseIndex, where a higher score is better.
type scoredItem struct {
	id    int
	score float32
}

// scoreHeap is a bounded min-heap over scoredItem keyed by ascending score,
// so the root is always the current worst-accepted candidate: pushing a
// better candidate than the root evicts the root once the heap is full.
type scoreHeap []scoredItem

func (h scoreHeap) Len() int            { return len(h) }
func (h scoreHeap) Less(i, j int) bool  { return h[i].score < h[j].score }
func (h scoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *scoreHeap) Push(x interface{}) { *h = append(*h, x.(scoredItem)) }
func (h *scoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// topKScores is a bounded top-k collector by descending score.
type topKScores struct {
	k int
	h scoreHeap
}

func newTopKScores(k int) *topKScores {
	return &topKScores{k: k, h: make(scoreHeap, 0, k)}
}

// offer admits (id, score) into the top-k set if it is better than the
// current worst, or if the heap is not yet full. Returns true if accepted.
func (t *topKScores) offer(id int, score float32) bool {
	if t.k <= 0 {
		return false
	}
	if len(t.h) < t.k {
		heap.Push(&t.h, scoredItem{id: id, score: score})
		return true
	}
	if score <= t.h[0].score {
		return false
	}
	heap.Pop(&t.h)
	heap.Push(&t.h, scoredItem{id: id, score: score})
	return true
}

// full reports whether the collector has reached its configured k.
func (t *topKScores) full() bool {
	return len(t.h) >= t.k
}

// worst returns the current worst accepted score, or -Inf if empty.
func (t *topKScores) worst() float32 {
	if len(t.h) == 0 {
		return -math32.Inf(1)
	}
	return t.h[0].score
}

// sortedDescending drains the heap into a slice ordered by descending score.
func (t *topKScores) sortedDescending() []scoredItem {
	out := make([]scoredItem, len(t.h))
	copy(out, t.h)
	// heap.Pop repeatedly yields ascending order from a min-heap; reverse.
	tmp := make(scoreHeap, len(out))
	copy(tmp, out)
	asc := make([]scoredItem, 0, len(tmp))
	for tmp.Len() > 0 {
		asc = append(asc, heap.Pop(&tmp).(scoredItem))
	}
	for i, j := 0, len(asc)-1; i < j; i, j = i+1, j-1 {
		asc[i], asc[j] = asc[j], asc[i]
	}
	return asc
}

// distItem is an (id, distance) pair ordered by ascending distance — used by
// LSHIndex, where a lower distance is better.
type distItem struct {
	id       int
	distance float32
	seq      int // insertion order, for stable tie-breaking by first occurrence
}

// distMaxHeap is a bounded max-heap over distItem keyed by descending
// distance, so the root is the current worst-accepted (farthest) candidate.
type distMaxHeap []distItem

func (h distMaxHeap) Len() int { return len(h) }
func (h distMaxHeap) Less(i, j int) bool {
	if h[i].distance != h[j].distance {
		return h[i].distance > h[j].distance
	}
	return h[i].seq > h[j].seq
}
func (h distMaxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *distMaxHeap) Push(x interface{}) { *h = append(*h, x.(distItem)) }
func (h *distMaxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// topKDistances is a bounded top-k collector by ascending distance (nearest
// neighbors).
type topKDistances struct {
	k    int
	h    distMaxHeap
	next int
}

func newTopKDistances(k int) *topKDistances {
	return &topKDistances{k: k, h: make(distMaxHeap, 0, k)}
}

func (t *topKDistances) offer(id int, distance float32) bool {
	if t.k <= 0 {
		return false
	}
	item := distItem{id: id, distance: distance, seq: t.next}
	t.next++
	if len(t.h) < t.k {
		heap.Push(&t.h, item)
		return true
	}
	if distance >= t.h[0].distance {
		return false
	}
	heap.Pop(&t.h)
	heap.Push(&t.h, item)
	return true
}

func (t *topKDistances) full() bool {
	return len(t.h) >= t.k
}

func (t *topKDistances) worst() float32 {
	if len(t.h) == 0 {
		return math32.Inf(1)
	}
	return t.h[0].distance
}

// sortedAscending drains the heap into a slice ordered by ascending
// distance, with ties broken by id order of first occurrence (seq).
func (t *topKDistances) sortedAscending() []distItem {
	tmp := make(distMaxHeap, len(t.h))
	copy(tmp, t.h)
	desc := make([]distItem, 0, len(tmp))
	for tmp.Len() > 0 {
		desc = append(desc, heap.Pop(&tmp).(distItem))
	}
	for i, j := 0, len(desc)-1; i < j; i, j = i+1, j-1 {
		desc[i], desc[j] = desc[j], desc[i]
	}
	return desc
}
