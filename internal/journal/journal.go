// Package journal records every applied changeset for a project in a
// SQLite file under the project's .loom directory. A per-path roaring
// bitmap index answers "which turns touched this file" without scanning
// the op log.
package journal

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring"
	_ "modernc.org/sqlite"

	"github.com/agentic-research/loom/api"
)

// DefaultFileName is the journal's on-disk name inside .loom/.
const DefaultFileName = "journal.db"

// OpRecord is one journaled operation.
type OpRecord struct {
	Kind api.OpKind `json:"kind"`
	Path string     `json:"path,omitempty"`
	// Detail carries the op's non-path payload: rename destination,
	// package list, command type.
	Detail string `json:"detail,omitempty"`
}

// TurnRecord is one journaled agent turn.
type TurnRecord struct {
	Seq     int64      `json:"seq"`
	At      time.Time  `json:"at"`
	Summary string     `json:"summary,omitempty"`
	Ops     []OpRecord `json:"ops"`
}

// Journal is an append-only turn log for one project.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS turns (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	at INTEGER NOT NULL,
	summary TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS ops (
	turn_seq INTEGER NOT NULL,
	idx INTEGER NOT NULL,
	kind TEXT NOT NULL,
	path TEXT NOT NULL DEFAULT '',
	detail TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (turn_seq, idx)
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS path_index (
	path TEXT PRIMARY KEY,
	bitmap BLOB NOT NULL
) WITHOUT ROWID;
`

// Open opens or creates a journal database at path. Use ":memory:" for
// an ephemeral journal in tests.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record appends one turn with its operations and updates the path
// index. Returns the turn's sequence number.
func (j *Journal) Record(summary string, ops []api.Operation) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	tx, err := j.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin journal tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op after commit

	res, err := tx.Exec(`INSERT INTO turns (at, summary) VALUES (?, ?)`,
		time.Now().UnixNano(), summary)
	if err != nil {
		return 0, fmt.Errorf("insert turn: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("turn seq: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO ops (turn_seq, idx, kind, path, detail) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare op insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	touched := make(map[string]struct{})
	for i, op := range ops {
		rec := toRecord(op)
		if _, err := stmt.Exec(seq, i, string(rec.Kind), rec.Path, rec.Detail); err != nil {
			return 0, fmt.Errorf("insert op %d: %w", i, err)
		}
		for _, p := range touchedPaths(op) {
			touched[p] = struct{}{}
		}
	}

	for path := range touched {
		if err := addToPathIndex(tx, path, uint32(seq)); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit journal tx: %w", err)
	}
	return seq, nil
}

// Turns returns the most recent turns, newest first. limit <= 0 returns
// everything.
func (j *Journal) Turns(limit int) ([]TurnRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	q := `SELECT seq, at, summary FROM turns ORDER BY seq DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := j.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []TurnRecord
	for rows.Next() {
		var t TurnRecord
		var atNano int64
		if err := rows.Scan(&t.Seq, &atNano, &t.Summary); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.At = time.Unix(0, atNano)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range turns {
		ops, err := j.opsFor(turns[i].Seq)
		if err != nil {
			return nil, err
		}
		turns[i].Ops = ops
	}
	return turns, nil
}

// TurnsForPath returns the ascending sequence numbers of turns that
// touched path, via the roaring index.
func (j *Journal) TurnsForPath(path string) ([]uint32, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var blob []byte
	err := j.db.QueryRow(`SELECT bitmap FROM path_index WHERE path = ?`, path).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query path index: %w", err)
	}

	bm := roaring.New()
	if _, err := bm.FromBuffer(blob); err != nil {
		return nil, fmt.Errorf("decode bitmap for %s: %w", path, err)
	}
	return bm.ToArray(), nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) opsFor(seq int64) ([]OpRecord, error) {
	rows, err := j.db.Query(`SELECT kind, path, detail FROM ops WHERE turn_seq = ? ORDER BY idx`, seq)
	if err != nil {
		return nil, fmt.Errorf("query ops: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ops []OpRecord
	for rows.Next() {
		var rec OpRecord
		var kind string
		if err := rows.Scan(&kind, &rec.Path, &rec.Detail); err != nil {
			return nil, fmt.Errorf("scan op: %w", err)
		}
		rec.Kind = api.OpKind(kind)
		ops = append(ops, rec)
	}
	return ops, rows.Err()
}

// addToPathIndex sets bit seq in path's bitmap, read-modify-write inside
// the caller's transaction.
func addToPathIndex(tx *sql.Tx, path string, seq uint32) error {
	bm := roaring.New()

	var blob []byte
	err := tx.QueryRow(`SELECT bitmap FROM path_index WHERE path = ?`, path).Scan(&blob)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return fmt.Errorf("read path index %s: %w", path, err)
	default:
		if _, err := bm.FromBuffer(blob); err != nil {
			return fmt.Errorf("decode bitmap for %s: %w", path, err)
		}
	}

	bm.Add(seq)
	out, err := bm.ToBytes()
	if err != nil {
		return fmt.Errorf("encode bitmap for %s: %w", path, err)
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO path_index (path, bitmap) VALUES (?, ?)`, path, out); err != nil {
		return fmt.Errorf("write path index %s: %w", path, err)
	}
	return nil
}

func toRecord(op api.Operation) OpRecord {
	rec := OpRecord{Kind: op.Kind()}
	switch o := op.(type) {
	case api.Write:
		rec.Path = o.Path
		rec.Detail = o.Description
	case api.Rename:
		rec.Path = o.From
		rec.Detail = o.To
	case api.Delete:
		rec.Path = o.Path
	case api.AddDependency:
		rec.Detail = strings.Join(o.Packages, " ")
	case api.RunCommand:
		rec.Detail = string(o.Type)
	case api.SetSummary:
		rec.Detail = o.Text
	}
	return rec
}

func touchedPaths(op api.Operation) []string {
	switch o := op.(type) {
	case api.Write:
		return []string{o.Path}
	case api.Rename:
		return []string{o.From, o.To}
	case api.Delete:
		return []string{o.Path}
	}
	return nil
}
