package library

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/blake2b"
)

const (
	ledgerTable   = "ledger_entries"
	sqliteDialect = "sqlite3"
)

var ledgerJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Ledger is an append-only, hash-chained record of circulation events kept
// in SQLite. It is an audit trail: LendingService never reads state back
// from it.
type Ledger struct {
	mu       sync.Mutex
	db       *sqlx.DB
	insert   *sqlx.Stmt
	lastHash string
}

// Entry is one stored ledger row.
type Entry struct {
	Seq          int64         `db:"seq" json:"seq"`
	ID           string        `db:"id" json:"id"`
	Kind         EventKind     `db:"kind" json:"kind"`
	OccurredAtNS int64         `db:"occurred_at" json:"-"`
	UserID       sql.NullInt64 `db:"user_id" json:"-"`
	MaterialID   sql.NullInt64 `db:"material_id" json:"-"`
	Organization string        `db:"organization" json:"organization,omitempty"`
	Amount       int           `db:"amount" json:"amount,omitempty"`
	Payload      string        `db:"payload" json:"payload"`
	PrevHash     string        `db:"prev_hash" json:"prev_hash"`
	Hash         string        `db:"hash" json:"hash"`
}

func (e Entry) OccurredAt() time.Time {
	return time.Unix(0, e.OccurredAtNS).UTC()
}

// Event decodes the payload the entry was written from.
func (e Entry) Event() (Event, error) {
	var ev Event
	if err := ledgerJSON.UnmarshalFromString(e.Payload, &ev); err != nil {
		return Event{}, fmt.Errorf("decode entry %d: %w", e.Seq, err)
	}
	return ev, nil
}

// OpenLedger opens (or creates) the ledger at path. An empty path or
// ":memory:" keeps the ledger in memory for the life of the process.
func OpenLedger(path string) (*Ledger, error) {
	inMemory := path == "" || path == ":memory:"

	dsn := ":memory:"
	if !inMemory {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create ledger dir: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000", path)
	}

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: an in-memory database lives and dies with it, and a
	// single writer keeps the hash chain linear.
	db.SetMaxOpenConns(1)

	if err := applyLedgerMigrations(db, !inMemory); err != nil {
		db.Close()
		return nil, err
	}

	l := &Ledger{db: db}
	if err := l.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	if err := l.loadLastHash(); err != nil {
		l.Close()
		return nil, err
	}
	return l, nil
}

// Close releases the prepared statement and closes the database.
func (l *Ledger) Close() error {
	if l.insert != nil {
		l.insert.Close()
	}
	return l.db.Close()
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const ledgerSchemaVersion = 1

func applyLedgerMigrations(db *sqlx.DB, wal bool) error {
	if wal {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("enable WAL: %w", err)
		}
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.Get(&current, `SELECT value FROM meta WHERE key='schema_version';`)
	if current >= ledgerSchemaVersion {
		return nil
	}

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ledger_entries (
            seq INTEGER PRIMARY KEY AUTOINCREMENT,
            id TEXT NOT NULL UNIQUE,
            kind TEXT NOT NULL,
            occurred_at INTEGER NOT NULL,
            user_id INTEGER,
            material_id INTEGER,
            organization TEXT NOT NULL DEFAULT '',
            amount INTEGER NOT NULL DEFAULT 0,
            payload TEXT NOT NULL,
            prev_hash TEXT NOT NULL,
            hash TEXT NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_kind ON ledger_entries(kind);`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_organization ON ledger_entries(organization);`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, ledgerSchemaVersion); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}

	return tx.Commit()
}

func (l *Ledger) prepareStatements() error {
	var err error
	l.insert, err = l.db.Preparex(`INSERT INTO ledger_entries
        (id,kind,occurred_at,user_id,material_id,organization,amount,payload,prev_hash,hash)
        VALUES(?,?,?,?,?,?,?,?,?,?)`)
	return err
}

func (l *Ledger) loadLastHash() error {
	err := l.db.Get(&l.lastHash, `SELECT hash FROM ledger_entries ORDER BY seq DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		l.lastHash = ""
		return nil
	}
	return err
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// Record appends e to the ledger, chaining it to the previous entry.
func (l *Ledger) Record(e Event) error {
	payload, err := ledgerJSON.MarshalToString(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	id := uuid.NewString()
	occurredAt := e.OccurredAt.UnixNano()
	hash := chainHash(l.lastHash, id, e.Kind, occurredAt, payload)

	if _, err := l.insert.Exec(
		id, string(e.Kind), occurredAt,
		userColumn(e), materialColumn(e),
		e.Organization, e.Amount,
		payload, l.lastHash, hash,
	); err != nil {
		return fmt.Errorf("append %s: %w", e.Kind, err)
	}
	l.lastHash = hash
	return nil
}

func chainHash(prev, id string, kind EventKind, occurredAt int64, payload string) string {
	h, _ := blake2b.New256(nil)
	for _, part := range []string{prev, id, string(kind), strconv.FormatInt(occurredAt, 10), payload} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func userColumn(e Event) sql.NullInt64 {
	switch e.Kind {
	case EventUserEnrolled, EventMaterialCheckedOut, EventMaterialReturned, EventFineAccrued:
		return sql.NullInt64{Int64: int64(e.UserID), Valid: true}
	}
	return sql.NullInt64{}
}

func materialColumn(e Event) sql.NullInt64 {
	switch e.Kind {
	case EventMaterialStocked, EventMaterialCheckedOut, EventMaterialReturned, EventFineAccrued:
		return sql.NullInt64{Int64: int64(e.MaterialID), Valid: true}
	}
	return sql.NullInt64{}
}

// ---------------------------------------------------------------------------
// Reading
// ---------------------------------------------------------------------------

// HistoryQuery selects ledger entries. Zero fields match everything; Limit
// keeps only the most recent entries.
type HistoryQuery struct {
	Kinds        []EventKind
	UserID       *int
	MaterialID   *int
	Organization string
	Since        time.Time
	Limit        int
}

// History returns matching entries in the order they were recorded.
func (l *Ledger) History(q HistoryQuery) ([]Entry, error) {
	query, args, err := buildHistoryQuery(q)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	if err := l.db.Select(&entries, query, args...); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	if q.Limit > 0 {
		slices.Reverse(entries)
	}
	return entries, nil
}

func buildHistoryQuery(q HistoryQuery) (string, []any, error) {
	stmt := goqu.Dialect(sqliteDialect).
		From(ledgerTable).
		Select("seq", "id", "kind", "occurred_at", "user_id", "material_id",
			"organization", "amount", "payload", "prev_hash", "hash").
		Prepared(true)

	if len(q.Kinds) > 0 {
		kinds := make([]any, len(q.Kinds))
		for i, k := range q.Kinds {
			kinds[i] = string(k)
		}
		stmt = stmt.Where(goqu.C("kind").In(kinds...))
	}
	if q.UserID != nil {
		stmt = stmt.Where(goqu.C("user_id").Eq(*q.UserID))
	}
	if q.MaterialID != nil {
		stmt = stmt.Where(goqu.C("material_id").Eq(*q.MaterialID))
	}
	if q.Organization != "" {
		stmt = stmt.Where(goqu.C("organization").Eq(q.Organization))
	}
	if !q.Since.IsZero() {
		stmt = stmt.Where(goqu.C("occurred_at").Gte(q.Since.UnixNano()))
	}

	if q.Limit > 0 {
		stmt = stmt.Order(goqu.C("seq").Desc()).Limit(uint(q.Limit))
	} else {
		stmt = stmt.Order(goqu.C("seq").Asc())
	}

	query, args, err := stmt.ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build history query: %w", err)
	}
	return query, args, nil
}

// Verify walks the whole ledger and recomputes every hash. It returns
// ErrLedgerTampered naming the first entry whose chain does not match.
func (l *Ledger) Verify() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.History(HistoryQuery{})
	if err != nil {
		return err
	}

	prev := ""
	for _, e := range entries {
		if e.PrevHash != prev {
			return fmt.Errorf("entry %d: previous hash mismatch: %w", e.Seq, ErrLedgerTampered)
		}
		if want := chainHash(prev, e.ID, e.Kind, e.OccurredAtNS, e.Payload); want != e.Hash {
			return fmt.Errorf("entry %d: content hash mismatch: %w", e.Seq, ErrLedgerTampered)
		}
		prev = e.Hash
	}
	return nil
}
