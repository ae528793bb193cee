package vectordb

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteColumnStore is a ColumnStore backed by modernc.org/sqlite, generalized
// from the teacher's per-code-chunk metadata table to a generic vector row
// (id, data BLOB, deleted) plus one vector_meta row (id, seq, key, value)
// per metadata pair.
type SQLiteColumnStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteColumnStore opens (creating if necessary) a SQLite-backed column
// store at path.
func NewSQLiteColumnStore(path string) (*SQLiteColumnStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, wrapErr(KindIoError, "create directory", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrapErr(KindIoError, "open database", err)
	}

	s := &SQLiteColumnStore{db: db, path: path}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteColumnStore) init() error {
	schema := `
		CREATE TABLE IF NOT EXISTS vectors (
			id INTEGER PRIMARY KEY,
			data BLOB NOT NULL,
			deleted INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS vector_meta (
			id INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_vector_meta_id ON vector_meta(id);
		CREATE INDEX IF NOT EXISTS idx_vector_meta_kv ON vector_meta(key, value);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return wrapErr(KindIoError, "create schema", err)
	}
	return nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

func (s *SQLiteColumnStore) Add(vec []float32, meta MetaList) (int, error) {
	if vec == nil {
		return 0, newErr(KindNullInput, "vec must not be nil")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, wrapErr(KindIoError, "begin transaction", err)
	}

	res, err := tx.Exec(`INSERT INTO vectors (data, deleted) VALUES (?, 0)`, encodeVector(vec))
	if err != nil {
		_ = tx.Rollback()
		return 0, wrapErr(KindIoError, "insert vector", err)
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return 0, wrapErr(KindIoError, "read last insert id", err)
	}
	id := int(rowID) - 1 // SQLite rowids start at 1; ids here start at 0

	for seq, p := range meta {
		if _, err := tx.Exec(`INSERT INTO vector_meta (id, seq, key, value) VALUES (?, ?, ?, ?)`,
			rowID, seq, p.Key, p.Value); err != nil {
			_ = tx.Rollback()
			return 0, wrapErr(KindIoError, "insert metadata", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, wrapErr(KindIoError, "commit transaction", err)
	}
	return id, nil
}

func (s *SQLiteColumnStore) GetData(id int) ([]float32, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM vectors WHERE id = ?`, id+1).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, newErr(KindNotFound, "id not found")
	}
	if err != nil {
		return nil, wrapErr(KindIoError, "query vector", err)
	}
	return decodeVector(data), nil
}

func (s *SQLiteColumnStore) GetMetadata(id int) (MetaList, error) {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM vectors WHERE id = ?`, id+1).Scan(&exists); err != nil {
		return nil, wrapErr(KindIoError, "query vector", err)
	}
	if exists == 0 {
		return nil, newErr(KindNotFound, "id not found")
	}

	rows, err := s.db.Query(`SELECT key, value FROM vector_meta WHERE id = ? ORDER BY seq`, id+1)
	if err != nil {
		return nil, wrapErr(KindIoError, "query metadata", err)
	}
	defer func() { _ = rows.Close() }()

	var out MetaList
	for rows.Next() {
		var p MetaPair
		if err := rows.Scan(&p.Key, &p.Value); err != nil {
			return nil, wrapErr(KindIoError, "scan metadata", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteColumnStore) MarkDeleted(id int) error {
	res, err := s.db.Exec(`UPDATE vectors SET deleted = 1 WHERE id = ? AND deleted = 0`, id+1)
	if err != nil {
		return wrapErr(KindIoError, "mark deleted", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(KindIoError, "read rows affected", err)
	}
	if n == 0 {
		return newErr(KindNotFound, "id not found or already deleted")
	}
	return nil
}

func (s *SQLiteColumnStore) IsDeleted(id int) (bool, error) {
	var deleted int
	err := s.db.QueryRow(`SELECT deleted FROM vectors WHERE id = ?`, id+1).Scan(&deleted)
	if err == sql.ErrNoRows {
		return false, newErr(KindNotFound, "id not found")
	}
	if err != nil {
		return false, wrapErr(KindIoError, "query deleted", err)
	}
	return deleted != 0, nil
}

func (s *SQLiteColumnStore) Count() int {
	var count int
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM vectors`).Scan(&count)
	return count
}

func (s *SQLiteColumnStore) UpdateData(id int, vec []float32) error {
	res, err := s.db.Exec(`UPDATE vectors SET data = ? WHERE id = ?`, encodeVector(vec), id+1)
	if err != nil {
		return wrapErr(KindIoError, "update vector", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(KindIoError, "read rows affected", err)
	}
	if n == 0 {
		return newErr(KindNotFound, "id not found")
	}
	return nil
}

func (s *SQLiteColumnStore) Close() error {
	return s.db.Close()
}

// FilteredIDs returns the set of ids whose metadata contains the exact
// (key, value) pair, for use as an LSHIndex candidate filter.
func (s *SQLiteColumnStore) FilteredIDs(key, value string) (map[int]bool, error) {
	rows, err := s.db.Query(`SELECT id FROM vector_meta WHERE key = ? AND value = ?`, key, value)
	if err != nil {
		return nil, wrapErr(KindIoError, "query filtered ids", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[int]bool)
	for rows.Next() {
		var rowID int
		if err := rows.Scan(&rowID); err != nil {
			return nil, wrapErr(KindIoError, "scan filtered id", err)
		}
		out[rowID-1] = true
	}
	return out, rows.Err()
}
