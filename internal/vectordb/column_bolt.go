package vectordb

import (
	"encoding/binary"
	"encoding/json"
	"sync"

	bolt "go.etcd.io/bbolt"
)

var (
	boltVectorsBucket = []byte("vectors")
	boltMetaBucket    = []byte("meta")
	boltDeletedBucket = []byte("deleted")
	boltCounterKey    = []byte("next_id")
)

// BoltColumnStore is a ColumnStore backed by go.etcd.io/bbolt: one bucket for
// raw vector bytes, one for JSON-encoded MetaList, and one for the deleted
// flag, all keyed by an 8-byte big-endian id. It demonstrates a pure
// embedded-KV alternative to SQLiteColumnStore behind the same interface.
type BoltColumnStore struct {
	mu sync.Mutex // serializes id allocation across Add calls
	db *bolt.DB
}

// NewBoltColumnStore opens (creating if necessary) a bbolt-backed column
// store at path.
func NewBoltColumnStore(path string) (*BoltColumnStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, wrapErr(KindIoError, "open bolt database", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{boltVectorsBucket, boltMetaBucket, boltDeletedBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, wrapErr(KindIoError, "create buckets", err)
	}

	return &BoltColumnStore{db: db}, nil
}

func idKey(id int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(id))
	return k
}

func (s *BoltColumnStore) Add(vec []float32, meta MetaList) (int, error) {
	if vec == nil {
		return 0, newErr(KindNullInput, "vec must not be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var id int
	err := s.db.Update(func(tx *bolt.Tx) error {
		vb := tx.Bucket(boltVectorsBucket)
		mb := tx.Bucket(boltMetaBucket)

		id = vb.Stats().KeyN

		metaBytes, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		if err := vb.Put(idKey(id), encodeVector(vec)); err != nil {
			return err
		}
		return mb.Put(idKey(id), metaBytes)
	})
	if err != nil {
		return 0, wrapErr(KindIoError, "add vector", err)
	}
	return id, nil
}

func (s *BoltColumnStore) GetData(id int) ([]float32, error) {
	var vec []float32
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(boltVectorsBucket).Get(idKey(id))
		if v == nil {
			return newErr(KindNotFound, "id not found")
		}
		vec = decodeVector(v)
		return nil
	})
	return vec, err
}

func (s *BoltColumnStore) GetMetadata(id int) (MetaList, error) {
	var meta MetaList
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(boltMetaBucket).Get(idKey(id))
		if v == nil {
			return newErr(KindNotFound, "id not found")
		}
		return json.Unmarshal(v, &meta)
	})
	if err != nil {
		if KindOf(err) == KindNotFound {
			return nil, err
		}
		return nil, wrapErr(KindCorrupt, "decode metadata", err)
	}
	return meta, nil
}

func (s *BoltColumnStore) MarkDeleted(id int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		vb := tx.Bucket(boltVectorsBucket)
		if vb.Get(idKey(id)) == nil {
			return newErr(KindNotFound, "id not found")
		}
		db := tx.Bucket(boltDeletedBucket)
		if db.Get(idKey(id)) != nil {
			return newErr(KindNotFound, "id already deleted")
		}
		return db.Put(idKey(id), []byte{1})
	})
}

func (s *BoltColumnStore) IsDeleted(id int) (bool, error) {
	var deleted bool
	err := s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(boltVectorsBucket).Get(idKey(id)) == nil {
			return newErr(KindNotFound, "id not found")
		}
		deleted = tx.Bucket(boltDeletedBucket).Get(idKey(id)) != nil
		return nil
	})
	return deleted, err
}

func (s *BoltColumnStore) Count() int {
	var n int
	_ = s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(boltVectorsBucket).Stats().KeyN
		return nil
	})
	return n
}

func (s *BoltColumnStore) UpdateData(id int, vec []float32) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		vb := tx.Bucket(boltVectorsBucket)
		if vb.Get(idKey(id)) == nil {
			return newErr(KindNotFound, "id not found")
		}
		return vb.Put(idKey(id), encodeVector(vec))
	})
}

func (s *BoltColumnStore) Close() error {
	return s.db.Close()
}
