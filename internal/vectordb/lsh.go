package vectordb

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// LSHIndex is a multi-table random-hyperplane locality-sensitive-hash index
// over dense float32 vectors. Vector data and metadata live in a
// ColumnStore: either one constructed and owned by the index, or an
// external one borrowed from the caller (§4.3, §9).
type LSHIndex struct {
	mu sync.RWMutex

	dimension int
	cfg       *LSHConfig

	// hyperplanes[t][b] is the b-th hyperplane of table t, length dimension.
	hyperplanes [][][]float32

	// buckets[t][bucket] holds the ids hashed into that bucket of table t.
	buckets [][][]int

	storage ColumnStore
	owned   bool
}

// NewLSH allocates the hyperplane bank (table, bit) with the given config's
// seed, and the bucket tables. If storage is nil, the index constructs and
// owns a MemoryColumnStore; otherwise the supplied ColumnStore is borrowed
// and never closed by the index.
func NewLSH(dimension int, cfg *LSHConfig, storage ColumnStore) (*LSHIndex, error) {
	if dimension <= 0 {
		return nil, newErr(KindInvalidArgument, "dimension must be positive")
	}
	if cfg == nil {
		cfg = DefaultLSHConfig()
	}

	owned := storage == nil
	if owned {
		storage = NewMemoryColumnStore()
	}

	numBuckets := cfg.NumBuckets()
	hyperplanes := make([][][]float32, cfg.NumTables)
	buckets := make([][][]int, cfg.NumTables)

	rng := newXorshift64(cfg.Seed)
	for t := 0; t < cfg.NumTables; t++ {
		hyperplanes[t] = make([][]float32, cfg.NumHashBits)
		for b := 0; b < cfg.NumHashBits; b++ {
			hyperplanes[t][b] = randomVector(rng, dimension)
		}
		buckets[t] = make([][]int, numBuckets)
	}

	return &LSHIndex{
		dimension:   dimension,
		cfg:         cfg,
		hyperplanes: hyperplanes,
		buckets:     buckets,
		storage:     storage,
		owned:       owned,
	}, nil
}

// hash computes table t's bucket index for vec: bit b of the hash is set
// iff the dot product with hyperplane (t, b) is >= 0, and the resulting
// num_hash_bits-wide value is reduced mod num_buckets (§4.3).
func (idx *LSHIndex) hash(table int, vec []float32) int {
	var h uint32
	for b, plane := range idx.hyperplanes[table] {
		if dot(vec, plane) >= 0 {
			h |= 1 << uint(b)
		}
	}
	return int(h) % len(idx.buckets[table])
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Insert delegates storage to the ColumnStore to obtain an id, then hashes
// the vector into each table's bucket array.
func (idx *LSHIndex) Insert(vec []float32, meta MetaList) (int, error) {
	if len(vec) != idx.dimension {
		return 0, newErr(KindInvalidArgument, "vector dimension mismatch")
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	id, err := idx.storage.Add(vec, meta)
	if err != nil {
		return 0, err
	}

	for t := range idx.buckets {
		b := idx.hash(t, vec)
		idx.buckets[t][b] = append(idx.buckets[t][b], id)
	}

	return id, nil
}

// Delete marks id deleted in the ColumnStore; stale bucket entries are left
// in place and filtered out at search time.
func (idx *LSHIndex) Delete(id int) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.storage.MarkDeleted(id)
}

// Update rehashes id under its OLD vector, removes id from every OLD
// bucket via linear scan, writes newData to storage, then hashes under the
// NEW vector and appends to the new buckets. Rejects ids already deleted.
func (idx *LSHIndex) Update(id int, newData []float32) error {
	if len(newData) != idx.dimension {
		return newErr(KindInvalidArgument, "vector dimension mismatch")
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	deleted, err := idx.storage.IsDeleted(id)
	if err != nil {
		return err
	}
	if deleted {
		return newErr(KindNotFound, "id is deleted")
	}

	oldData, err := idx.storage.GetData(id)
	if err != nil {
		return err
	}

	for t := range idx.buckets {
		b := idx.hash(t, oldData)
		idx.buckets[t][b] = removeID(idx.buckets[t][b], id)
	}

	if err := idx.storage.UpdateData(id, newData); err != nil {
		// Put id back into its old buckets so a failed update leaves the
		// index as it was.
		for t := range idx.buckets {
			b := idx.hash(t, oldData)
			idx.buckets[t][b] = append(idx.buckets[t][b], id)
		}
		return err
	}

	for t := range idx.buckets {
		b := idx.hash(t, newData)
		idx.buckets[t][b] = append(idx.buckets[t][b], id)
	}

	return nil
}

func removeID(ids []int, target int) []int {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// candidates unions every table's bucket contents for query, deduped via a
// roaring bitmap of visited ids.
func (idx *LSHIndex) candidates(query []float32) *roaring.Bitmap {
	visited := roaring.New()
	for t := range idx.buckets {
		b := idx.hash(t, query)
		for _, id := range idx.buckets[t][b] {
			visited.Add(uint32(id))
		}
	}
	return visited
}

// Close releases the storage collaborator if, and only if, it is owned by
// this index; a borrowed ColumnStore is the caller's responsibility.
func (idx *LSHIndex) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.owned {
		return idx.storage.Close()
	}
	return nil
}

// Count returns the number of vectors (live and deleted) in storage.
func (idx *LSHIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.storage.Count()
}
