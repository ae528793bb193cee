package vectordb

// Filter is an optional exact-match metadata predicate applied to search
// candidates: a candidate passes iff its metadata contains (Key, Value).
type Filter struct {
	Key   string
	Value string
}

// LSHResult is a (id, distance) search hit.
type LSHResult struct {
	ID       int
	Distance float32
}

// Search unions the query's bucket candidates across every table, filters
// out deleted ids and (optionally) ids failing an exact metadata match,
// scores survivors with metric, and returns up to k results sorted
// ascending by distance (§4.3).
func (idx *LSHIndex) Search(query []float32, k int, metric MetricFn, filter *Filter) ([]LSHResult, error) {
	if len(query) != idx.dimension {
		return nil, newErr(KindInvalidArgument, "query dimension mismatch")
	}
	if k <= 0 {
		return nil, newErr(KindInvalidArgument, "k must be positive")
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	visited := idx.candidates(query)
	top := newTopKDistances(k)

	it := visited.Iterator()
	for it.HasNext() {
		id := int(it.Next())
		ok, err := idx.passesFilter(id, filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		vec, err := idx.storage.GetData(id)
		if err != nil {
			return nil, err
		}
		top.offer(id, metric(query, vec))
	}

	results := top.sortedAscending()
	out := make([]LSHResult, len(results))
	for i, r := range results {
		out[i] = LSHResult{ID: r.id, Distance: r.distance}
	}
	return out, nil
}

// RangeSearch is Search's radius-bounded sibling: every surviving candidate
// with distance <= radius is emitted, up to max results, sorted ascending
// by distance.
func (idx *LSHIndex) RangeSearch(query []float32, radius float32, max int, metric MetricFn, filter *Filter) ([]LSHResult, error) {
	if len(query) != idx.dimension {
		return nil, newErr(KindInvalidArgument, "query dimension mismatch")
	}
	if max <= 0 {
		return nil, newErr(KindInvalidArgument, "max must be positive")
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	visited := idx.candidates(query)

	type hit struct {
		id  int
		d   float32
		seq int
	}
	var hits []hit
	seq := 0

	it := visited.Iterator()
	for it.HasNext() {
		id := int(it.Next())
		ok, err := idx.passesFilter(id, filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		vec, err := idx.storage.GetData(id)
		if err != nil {
			return nil, err
		}
		d := metric(query, vec)
		if d <= radius {
			hits = append(hits, hit{id: id, d: d, seq: seq})
			seq++
		}
	}

	// Stable sort ascending by distance, ties by first-occurrence order.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && (hits[j].d < hits[j-1].d); j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	if len(hits) > max {
		hits = hits[:max]
	}

	out := make([]LSHResult, len(hits))
	for i, h := range hits {
		out[i] = LSHResult{ID: h.id, Distance: h.d}
	}
	return out, nil
}

// passesFilter reports whether id is live (not deleted) and, if filter is
// non-nil, carries the exact (Key, Value) metadata pair.
func (idx *LSHIndex) passesFilter(id int, filter *Filter) (bool, error) {
	deleted, err := idx.storage.IsDeleted(id)
	if err != nil {
		return false, err
	}
	if deleted {
		return false, nil
	}
	if filter == nil {
		return true, nil
	}
	meta, err := idx.storage.GetMetadata(id)
	if err != nil {
		return false, err
	}
	return meta.Matches(filter.Key, filter.Value), nil
}
