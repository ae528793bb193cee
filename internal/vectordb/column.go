package vectordb

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// MetaPair is one key/value entry of a document's metadata. Metadata is kept
// as a small insertion-ordered slice rather than a map or a linked list: the
// typical document carries a handful of fields, so linear lookup is cheap
// and the slice round-trips to disk without pointer-chasing.
type MetaPair struct {
	Key   string
	Value string
}

// MetaList is the metadata sidecar for one vector, an insertion-ordered
// array of key/value pairs.
type MetaList []MetaPair

// Get returns the value for key and whether it was present.
func (m MetaList) Get(key string) (string, bool) {
	for _, p := range m {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Matches reports whether the list contains an exact (key, value) pair.
func (m MetaList) Matches(key, value string) bool {
	v, ok := m.Get(key)
	return ok && v == value
}

// Clone returns an independent copy of the list.
func (m MetaList) Clone() MetaList {
	out := make(MetaList, len(m))
	copy(out, m)
	return out
}

// ColumnStore is the append-only vector storage collaborator consumed by
// LSHIndex (and usable standalone). Ids are assigned in insertion order,
// never reused, and never reassigned; delete is logical.
type ColumnStore interface {
	// Add appends a vector with its metadata and returns its assigned id.
	Add(vec []float32, meta MetaList) (int, error)
	// GetData returns the vector stored at id.
	GetData(id int) ([]float32, error)
	// GetMetadata returns the metadata stored at id.
	GetMetadata(id int) (MetaList, error)
	// MarkDeleted soft-deletes id.
	MarkDeleted(id int) error
	// IsDeleted reports whether id has been soft-deleted.
	IsDeleted(id int) (bool, error)
	// Count returns the number of ids ever assigned (including deleted).
	Count() int
	// UpdateData overwrites the vector stored at id without touching
	// metadata or its deleted state.
	UpdateData(id int, vec []float32) error
	// Close releases any resources held by the store.
	Close() error
}

// MemoryColumnStore is the default in-process ColumnStore: a growable slice
// of vectors and metadata, with deleted ids tracked in a roaring bitmap.
// This is what an "Owned" LSHIndex constructs for itself when the caller
// does not supply an external store.
type MemoryColumnStore struct {
	mu      sync.RWMutex
	vectors [][]float32
	meta    []MetaList
	deleted *roaring.Bitmap
}

// NewMemoryColumnStore creates an empty in-memory column store.
func NewMemoryColumnStore() *MemoryColumnStore {
	return &MemoryColumnStore{
		deleted: roaring.New(),
	}
}

func (s *MemoryColumnStore) Add(vec []float32, meta MetaList) (int, error) {
	if vec == nil {
		return 0, newErr(KindNullInput, "vec must not be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := len(s.vectors)
	cp := make([]float32, len(vec))
	copy(cp, vec)
	s.vectors = append(s.vectors, cp)
	s.meta = append(s.meta, meta.Clone())
	return id, nil
}

func (s *MemoryColumnStore) GetData(id int) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 0 || id >= len(s.vectors) {
		return nil, newErr(KindNotFound, "id out of range")
	}
	return s.vectors[id], nil
}

func (s *MemoryColumnStore) GetMetadata(id int) (MetaList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 0 || id >= len(s.meta) {
		return nil, newErr(KindNotFound, "id out of range")
	}
	return s.meta[id], nil
}

func (s *MemoryColumnStore) MarkDeleted(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.vectors) {
		return newErr(KindNotFound, "id out of range")
	}
	if s.deleted.Contains(uint32(id)) {
		return newErr(KindNotFound, "id already deleted")
	}
	s.deleted.Add(uint32(id))
	return nil
}

func (s *MemoryColumnStore) IsDeleted(id int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 0 || id >= len(s.vectors) {
		return false, newErr(KindNotFound, "id out of range")
	}
	return s.deleted.Contains(uint32(id)), nil
}

func (s *MemoryColumnStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

func (s *MemoryColumnStore) UpdateData(id int, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.vectors) {
		return newErr(KindNotFound, "id out of range")
	}
	cp := make([]float32, len(vec))
	copy(cp, vec)
	s.vectors[id] = cp
	return nil
}

func (s *MemoryColumnStore) Close() error { return nil }
