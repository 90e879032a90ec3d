package vecstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	id      TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	vector  BLOB NOT NULL,
	source  TEXT NOT NULL DEFAULT '',
	payload TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_records_source ON records(source);
`

// SQLite is an embedded Store backend. Vectors are stored as little-endian
// float32 blobs and Query runs a brute-force cosine scan, which is fine for
// the collection sizes local mode handles.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the store at path. ":memory:" works for
// tests; parent directories are created for file paths.
func NewSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Add(ctx context.Context, recs []Record) ([]string, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO records (id, content, vector, source, payload) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	ids := make([]string, len(recs))
	for i, r := range recs {
		id := r.ID
		if id == "" {
			id = uuid.NewString()
		}
		ids[i] = id

		payload, err := json.Marshal(r.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload for %s: %w", id, err)
		}
		source, _ := r.Payload[SourceKey].(string)
		if _, err := stmt.ExecContext(ctx, id, r.Content, encodeVector(r.Vector), source, payload); err != nil {
			return nil, fmt.Errorf("insert %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return ids, nil
}

func (s *SQLite) Query(ctx context.Context, vector []float32, k int, f *Filter) ([]Match, error) {
	if k <= 0 {
		k = 5
	}
	rows, err := s.queryRows(ctx, f, 0)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(rows))
	for _, r := range rows {
		matches = append(matches, Match{Record: r, Score: cosine(vector, r.Vector)})
	}
	// Insertion sort by descending score; collections here are small.
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].Score > matches[j-1].Score; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *SQLite) Scroll(ctx context.Context, limit int, f *Filter) ([]Record, error) {
	return s.queryRows(ctx, f, limit)
}

func (s *SQLite) Delete(ctx context.Context, f *Filter) error {
	var err error
	if f == nil {
		_, err = s.db.ExecContext(ctx, `DELETE FROM records`)
	} else {
		_, err = s.db.ExecContext(ctx, `DELETE FROM records WHERE source = ?`, f.Source)
	}
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (s *SQLite) Info(ctx context.Context) (CollectionInfo, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return CollectionInfo{}, err
	}
	info := CollectionInfo{Count: n, Distance: "Cosine"}
	var blob []byte
	err = s.db.QueryRowContext(ctx, `SELECT vector FROM records LIMIT 1`).Scan(&blob)
	switch err {
	case nil:
		info.VectorSize = len(blob) / 4
	case sql.ErrNoRows:
	default:
		return CollectionInfo{}, fmt.Errorf("sample vector: %w", err)
	}
	return info, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) queryRows(ctx context.Context, f *Filter, limit int) ([]Record, error) {
	q := `SELECT id, content, vector, payload FROM records`
	var args []any
	if f != nil {
		q += ` WHERE source = ?`
		args = append(args, f.Source)
	}
	q += ` ORDER BY rowid`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var r Record
		var blob, payload []byte
		if err := rows.Scan(&r.ID, &r.Content, &blob, &payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		r.Vector = decodeVector(blob)
		if err := json.Unmarshal(payload, &r.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload for %s: %w", r.ID, err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
