package vectordb

import (
	"encoding/binary"
	"io"
	"sort"
)

var sparseMagic = [7]byte{'G', 'V', '_', 'L', 'S', 'P', 'A'}

const sparseVersion uint32 = 1

// Save writes idx to w in the learned-sparse index file format of §6:
// magic "GV_LSPA", u32 version, config, doc_count, per-doc (entry_count,
// deleted), non_empty_posting_list_count, then per non-empty list
// (token_id, posting_count, postings).
func (idx *LearnedSparseIndex) Save(w io.Writer) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if _, err := w.Write(sparseMagic[:]); err != nil {
		return wrapErr(KindIoError, "write magic", err)
	}
	if err := writeU32(w, sparseVersion); err != nil {
		return wrapErr(KindIoError, "write version", err)
	}

	if err := writeU64(w, idx.cfg.VocabSize); err != nil {
		return wrapErr(KindIoError, "write vocab_size", err)
	}
	if err := writeU64(w, idx.cfg.MaxNonzeros); err != nil {
		return wrapErr(KindIoError, "write max_nonzeros", err)
	}
	useWAND := uint32(0)
	if idx.cfg.UseWAND {
		useWAND = 1
	}
	if err := writeU32(w, useWAND); err != nil {
		return wrapErr(KindIoError, "write use_wand", err)
	}
	if err := writeU64(w, idx.cfg.WANDBlockSize); err != nil {
		return wrapErr(KindIoError, "write wand_block_size", err)
	}

	if err := writeU64(w, idx.docCount); err != nil {
		return wrapErr(KindIoError, "write doc_count", err)
	}
	for docID := uint64(0); docID < idx.docCount; docID++ {
		if err := writeU64(w, uint64(idx.entryCounts[docID])); err != nil {
			return wrapErr(KindIoError, "write entry_count", err)
		}
		deleted := uint32(0)
		if idx.deleted.Test(uint(docID)) {
			deleted = 1
		}
		if err := writeU32(w, deleted); err != nil {
			return wrapErr(KindIoError, "write deleted flag", err)
		}
	}

	tokenIDs := make([]uint32, 0, len(idx.tokens))
	for t, pl := range idx.tokens {
		if pl.len() > 0 {
			tokenIDs = append(tokenIDs, t)
		}
	}
	sort.Slice(tokenIDs, func(i, j int) bool { return tokenIDs[i] < tokenIDs[j] })

	if err := writeU64(w, uint64(len(tokenIDs))); err != nil {
		return wrapErr(KindIoError, "write non_empty_posting_list_count", err)
	}
	for _, t := range tokenIDs {
		pl := idx.tokens[t]
		if err := writeU32(w, t); err != nil {
			return wrapErr(KindIoError, "write token_id", err)
		}
		if err := writeU64(w, uint64(pl.len())); err != nil {
			return wrapErr(KindIoError, "write posting_count", err)
		}
		for i := range pl.docIDs {
			if err := writeU64(w, pl.docIDs[i]); err != nil {
				return wrapErr(KindIoError, "write posting doc_id", err)
			}
			if err := writeF32(w, pl.weights[i]); err != nil {
				return wrapErr(KindIoError, "write posting weight", err)
			}
		}
	}

	return nil
}

// LoadLearnedSparseIndex reads an index from r in the format written by
// Save, rebuilding each posting list's block-max array from the loaded
// postings rather than persisting it (postings alone determine it
// deterministically given wand_block_size).
func LoadLearnedSparseIndex(r io.Reader) (*LearnedSparseIndex, error) {
	var magic [7]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, wrapErr(KindIoError, "read magic", err)
	}
	if magic != sparseMagic {
		return nil, newErr(KindCorrupt, "bad magic")
	}

	version, err := readU32(r)
	if err != nil {
		return nil, wrapErr(KindIoError, "read version", err)
	}
	if version != sparseVersion {
		return nil, newErr(KindCorrupt, "unsupported version")
	}

	cfg := &SparseConfig{}
	if cfg.VocabSize, err = readU64(r); err != nil {
		return nil, wrapErr(KindIoError, "read vocab_size", err)
	}
	if cfg.MaxNonzeros, err = readU64(r); err != nil {
		return nil, wrapErr(KindIoError, "read max_nonzeros", err)
	}
	useWAND, err := readU32(r)
	if err != nil {
		return nil, wrapErr(KindIoError, "read use_wand", err)
	}
	cfg.UseWAND = useWAND != 0
	if cfg.WANDBlockSize, err = readU64(r); err != nil {
		return nil, wrapErr(KindIoError, "read wand_block_size", err)
	}
	if cfg.WANDBlockSize == 0 {
		return nil, newErr(KindCorrupt, "wand_block_size must be positive")
	}

	idx := NewLearnedSparseIndex(cfg)

	docCount, err := readU64(r)
	if err != nil {
		return nil, wrapErr(KindIoError, "read doc_count", err)
	}
	idx.docCount = docCount
	idx.entryCounts = make([]int, docCount)

	for docID := uint64(0); docID < docCount; docID++ {
		entryCount, err := readU64(r)
		if err != nil {
			return nil, wrapErr(KindIoError, "read entry_count", err)
		}
		idx.entryCounts[docID] = int(entryCount)

		deletedRaw, err := readU32(r)
		if err != nil {
			return nil, wrapErr(KindIoError, "read deleted flag", err)
		}
		if deletedRaw != 0 {
			idx.deleted.Set(uint(docID))
		}
	}

	listCount, err := readU64(r)
	if err != nil {
		return nil, wrapErr(KindIoError, "read non_empty_posting_list_count", err)
	}

	for i := uint64(0); i < listCount; i++ {
		tokenID, err := readU32(r)
		if err != nil {
			return nil, wrapErr(KindIoError, "read token_id", err)
		}
		if uint64(tokenID) >= cfg.VocabSize {
			return nil, newErr(KindCorrupt, "token_id out of vocab range")
		}
		postingCount, err := readU64(r)
		if err != nil {
			return nil, wrapErr(KindIoError, "read posting_count", err)
		}

		pl := &postingList{}
		var lastDoc uint64
		for p := uint64(0); p < postingCount; p++ {
			docID, err := readU64(r)
			if err != nil {
				return nil, wrapErr(KindIoError, "read posting doc_id", err)
			}
			if docID >= docCount {
				return nil, newErr(KindCorrupt, "posting doc_id out of range")
			}
			if p > 0 && docID < lastDoc {
				return nil, newErr(KindCorrupt, "posting doc_ids not ascending")
			}
			lastDoc = docID

			weight, err := readF32(r)
			if err != nil {
				return nil, wrapErr(KindIoError, "read posting weight", err)
			}
			pl.append(docID, weight, cfg.WANDBlockSize)
			idx.totalPostings++
		}
		idx.tokens[tokenID] = pl
	}

	return idx, nil
}
