package vectordb

import "io"

// Save writes idx to w in the LSH index file format of §6: num_tables,
// num_hash_bits, seed, the concatenated hyperplane bank, vector_count, then
// per vector the raw data, metadata pairs, and deleted flag. Dimension is
// not stored in the file — as with create(D, ...), it is supplied by the
// caller when loading (LoadLSH).
func (idx *LSHIndex) Save(w io.Writer) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := writeU64(w, uint64(idx.cfg.NumTables)); err != nil {
		return wrapErr(KindIoError, "write num_tables", err)
	}
	if err := writeU64(w, uint64(idx.cfg.NumHashBits)); err != nil {
		return wrapErr(KindIoError, "write num_hash_bits", err)
	}
	if err := writeU64(w, idx.cfg.Seed); err != nil {
		return wrapErr(KindIoError, "write seed", err)
	}

	for t := 0; t < idx.cfg.NumTables; t++ {
		for b := 0; b < idx.cfg.NumHashBits; b++ {
			if err := writeF32Slice(w, idx.hyperplanes[t][b]); err != nil {
				return wrapErr(KindIoError, "write hyperplane", err)
			}
		}
	}

	count := idx.storage.Count()
	if err := writeU64(w, uint64(count)); err != nil {
		return wrapErr(KindIoError, "write vector_count", err)
	}

	for id := 0; id < count; id++ {
		vec, err := idx.storage.GetData(id)
		if err != nil {
			return err
		}
		if err := writeF32Slice(w, vec); err != nil {
			return wrapErr(KindIoError, "write vector data", err)
		}

		meta, err := idx.storage.GetMetadata(id)
		if err != nil {
			return err
		}
		if err := writeU32(w, uint32(len(meta))); err != nil {
			return wrapErr(KindIoError, "write metadata_count", err)
		}
		for _, pair := range meta {
			if err := writeLenPrefixed(w, pair.Key); err != nil {
				return err
			}
			if err := writeLenPrefixed(w, pair.Value); err != nil {
				return err
			}
		}

		deleted, err := idx.storage.IsDeleted(id)
		if err != nil {
			return err
		}
		deletedFlag := uint32(0)
		if deleted {
			deletedFlag = 1
		}
		if err := writeU32(w, deletedFlag); err != nil {
			return wrapErr(KindIoError, "write deleted_flag", err)
		}
	}

	return nil
}

func writeLenPrefixed(w io.Writer, s string) error {
	if err := writeU32(w, uint32(len(s))); err != nil {
		return wrapErr(KindIoError, "write length prefix", err)
	}
	if _, err := io.WriteString(w, s); err != nil {
		return wrapErr(KindIoError, "write string bytes", err)
	}
	return nil
}

func readLenPrefixed(r io.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", wrapErr(KindIoError, "read length prefix", err)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", wrapErr(KindIoError, "read string bytes", err)
	}
	return string(buf), nil
}

// LoadLSH reads an index from r in the format written by Save, for vectors
// of the given dimension (the file format does not self-describe D, mirroring
// create(D, ...) taking D explicitly). It reconstructs a fresh, owned
// MemoryColumnStore populated with every persisted vector, its metadata, and
// its deleted flag.
func LoadLSH(r io.Reader, dimension int) (*LSHIndex, error) {
	if dimension <= 0 {
		return nil, newErr(KindInvalidArgument, "dimension must be positive")
	}

	numTables, err := readU64(r)
	if err != nil {
		return nil, wrapErr(KindIoError, "read num_tables", err)
	}
	numHashBits, err := readU64(r)
	if err != nil {
		return nil, wrapErr(KindIoError, "read num_hash_bits", err)
	}
	seed, err := readU64(r)
	if err != nil {
		return nil, wrapErr(KindIoError, "read seed", err)
	}
	if numTables == 0 || numHashBits == 0 {
		return nil, newErr(KindCorrupt, "num_tables and num_hash_bits must be positive")
	}

	cfg := &LSHConfig{
		NumTables:   int(numTables),
		NumHashBits: int(numHashBits),
		Seed:        seed,
	}

	hyperplanes := make([][][]float32, cfg.NumTables)
	for t := 0; t < cfg.NumTables; t++ {
		hyperplanes[t] = make([][]float32, cfg.NumHashBits)
		for b := 0; b < cfg.NumHashBits; b++ {
			plane, err := readF32Slice(r, dimension)
			if err != nil {
				return nil, wrapErr(KindIoError, "read hyperplane", err)
			}
			hyperplanes[t][b] = plane
		}
	}

	vectorCount, err := readU64(r)
	if err != nil {
		return nil, wrapErr(KindIoError, "read vector_count", err)
	}

	storage := NewMemoryColumnStore()
	numBuckets := cfg.NumBuckets()
	buckets := make([][][]int, cfg.NumTables)
	for t := range buckets {
		buckets[t] = make([][]int, numBuckets)
	}

	idx := &LSHIndex{
		dimension:   dimension,
		cfg:         cfg,
		hyperplanes: hyperplanes,
		buckets:     buckets,
		storage:     storage,
		owned:       true,
	}

	for i := uint64(0); i < vectorCount; i++ {
		vec, err := readF32Slice(r, dimension)
		if err != nil {
			return nil, wrapErr(KindIoError, "read vector data", err)
		}

		metaCount, err := readU32(r)
		if err != nil {
			return nil, wrapErr(KindIoError, "read metadata_count", err)
		}
		meta := make(MetaList, metaCount)
		for m := uint32(0); m < metaCount; m++ {
			key, err := readLenPrefixed(r)
			if err != nil {
				return nil, err
			}
			value, err := readLenPrefixed(r)
			if err != nil {
				return nil, err
			}
			meta[m] = MetaPair{Key: key, Value: value}
		}

		deletedFlag, err := readU32(r)
		if err != nil {
			return nil, wrapErr(KindIoError, "read deleted_flag", err)
		}

		id, err := storage.Add(vec, meta)
		if err != nil {
			return nil, err
		}
		if id != int(i) {
			return nil, newErr(KindCorrupt, "vector id does not match insertion order")
		}
		if deletedFlag != 0 {
			if err := storage.MarkDeleted(id); err != nil {
				return nil, err
			}
		}

		for t := range idx.buckets {
			b := idx.hash(t, vec)
			idx.buckets[t][b] = append(idx.buckets[t][b], id)
		}
	}

	return idx, nil
}
