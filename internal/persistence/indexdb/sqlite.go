package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"fairdice.ai/internal/sim/controller"
	"fairdice.ai/internal/sim/tuning"
)

// MemoryPath keeps the index in process memory; it disappears on exit.
const MemoryPath = ":memory:"

// SQLiteIndex is a queryable read model of settled rolls and finished
// batches. Writes are queued to a single writer goroutine and dropped when the
// queue is full, so the simulation loop never waits on the database.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	// mu orders sends on ch against close(ch); closed is read under it.
	mu     sync.RWMutex
	closed bool

	dropRoll    atomic.Uint64
	dropBatch   atomic.Uint64
	dropFailure atomic.Uint64
}

type reqKind int

const (
	reqRoll reqKind = iota + 1
	reqBatch
	reqFailure
	reqSync
)

type req struct {
	kind reqKind

	roll    controller.RollRecord
	batch   batchRow
	failure failureRow
	done    chan struct{}
}

type batchRow struct {
	SessionID  string
	Target     int
	Completed  int
	Tick       uint64
	ChiSquared sql.NullFloat64
	Verdict    string
	RecordedAt string
}

type failureRow struct {
	SessionID  string
	Error      string
	RecordedAt string
}

// RollRow is one indexed roll.
type RollRow struct {
	SessionID  string `json:"session_id"`
	Roll       int    `json:"roll"`
	LaunchTick uint64 `json:"launch_tick"`
	Tick       uint64 `json:"tick"`
	FaceA      int    `json:"face_a"`
	FaceB      int    `json:"face_b"`
}

// BatchRow is one finished batch. ChiSquared is nil when the statistic was
// undefined.
type BatchRow struct {
	SessionID  string   `json:"session_id"`
	Target     int      `json:"target"`
	Completed  int      `json:"completed"`
	Tick       uint64   `json:"tick"`
	ChiSquared *float64 `json:"chi_squared,omitempty"`
	Verdict    string   `json:"verdict"`
	RecordedAt string   `json:"recorded_at"`
}

type Stats struct {
	QueueDepth       int    `json:"queue_depth"`
	QueueCapacity    int    `json:"queue_capacity"`
	DropRollTotal    uint64 `json:"drop_roll_total"`
	DropBatchTotal   uint64 `json:"drop_batch_total"`
	DropFailureTotal uint64 `json:"drop_failure_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection: an in-memory database lives exactly as long as it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS configs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS rolls (
			session_id TEXT NOT NULL,
			roll INTEGER NOT NULL,
			launch_tick INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			face_a INTEGER NOT NULL,
			face_b INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (session_id, roll)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_rolls_tick ON rolls(tick);`,
		`CREATE TABLE IF NOT EXISTS batches (
			session_id TEXT PRIMARY KEY,
			target INTEGER NOT NULL,
			completed INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			chi_squared REAL,
			verdict TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS launch_failures (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			error TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// enqueue hands r to the writer without blocking. It reports false when the
// queue is full; writes after Close are discarded.
func (s *SQLiteIndex) enqueue(r req) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- r:
		return true
	default:
		return false
	}
}

func (s *SQLiteIndex) RollSettled(rec controller.RollRecord, _ controller.Report) {
	if s == nil {
		return
	}
	if !s.enqueue(req{kind: reqRoll, roll: rec}) {
		// Drop if the indexer falls behind; the roll log remains the source of truth.
		s.dropRoll.Add(1)
	}
}

func (s *SQLiteIndex) BatchComplete(rep controller.Report) {
	if s == nil {
		return
	}
	r := batchRow{
		SessionID:  rep.SessionID,
		Target:     rep.Target,
		Completed:  rep.Completed,
		Tick:       rep.Tick,
		Verdict:    string(rep.Fairness.Joint.Verdict),
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if rep.Fairness.Joint.Defined() {
		r.ChiSquared = sql.NullFloat64{Float64: rep.Fairness.Joint.ChiSquared, Valid: true}
	}
	if !s.enqueue(req{kind: reqBatch, batch: r}) {
		s.dropBatch.Add(1)
	}
}

func (s *SQLiteIndex) LaunchFailed(sessionID string, err error) {
	if s == nil || err == nil {
		return
	}
	r := failureRow{
		SessionID:  sessionID,
		Error:      err.Error(),
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if !s.enqueue(req{kind: reqFailure, failure: r}) {
		s.dropFailure.Add(1)
	}
}

// Sync blocks until every write queued before it is committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s == nil {
		return nil
	}
	done := make(chan struct{})
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil
	}
	select {
	case s.ch <- req{kind: reqSync, done: done}:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:       len(s.ch),
		QueueCapacity:    cap(s.ch),
		DropRollTotal:    s.dropRoll.Load(),
		DropBatchTotal:   s.dropBatch.Load(),
		DropFailureTotal: s.dropFailure.Load(),
	}
}

// RecordTuning stores the tuning values actually applied, keyed by digest.
func (s *SQLiteIndex) RecordTuning(tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO configs(name,digest,json,updated_at) VALUES(?,?,?,?)`,
		"tuning", hex.EncodeToString(sum[:]), string(b), now); err != nil {
		return err
	}
	return tx.Commit()
}

// RecentRolls returns up to limit rolls, newest first. An empty sessionID
// matches every session.
func (s *SQLiteIndex) RecentRolls(ctx context.Context, sessionID string, limit int) ([]RollRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, roll, launch_tick, tick, face_a, face_b FROM rolls
		 WHERE (?1 = '' OR session_id = ?1)
		 ORDER BY tick DESC LIMIT ?2`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RollRow
	for rows.Next() {
		var r RollRow
		var launch, tick int64
		if err := rows.Scan(&r.SessionID, &r.Roll, &launch, &tick, &r.FaceA, &r.FaceB); err != nil {
			return nil, err
		}
		r.LaunchTick, r.Tick = uint64(launch), uint64(tick)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Batches returns up to limit finished batches, newest first.
func (s *SQLiteIndex) Batches(ctx context.Context, limit int) ([]BatchRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, target, completed, tick, chi_squared, verdict, recorded_at FROM batches
		 ORDER BY tick DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BatchRow
	for rows.Next() {
		var b BatchRow
		var tick int64
		var chi sql.NullFloat64
		if err := rows.Scan(&b.SessionID, &b.Target, &b.Completed, &tick, &chi, &b.Verdict, &b.RecordedAt); err != nil {
			return nil, err
		}
		b.Tick = uint64(tick)
		if chi.Valid {
			v := chi.Float64
			b.ChiSquared = &v
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// LaunchFailures counts recorded launch failures.
func (s *SQLiteIndex) LaunchFailures(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM launch_failures`).Scan(&n)
	return n, err
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRoll, _ := s.db.Prepare(`INSERT OR REPLACE INTO rolls(session_id,roll,launch_tick,tick,face_a,face_b,raw_json) VALUES(?,?,?,?,?,?,?)`)
	insertBatch, _ := s.db.Prepare(`INSERT OR REPLACE INTO batches(session_id,target,completed,tick,chi_squared,verdict,recorded_at) VALUES(?,?,?,?,?,?,?)`)
	insertFailure, _ := s.db.Prepare(`INSERT INTO launch_failures(session_id,error,recorded_at) VALUES(?,?,?)`)
	defer func() {
		if insertRoll != nil {
			_ = insertRoll.Close()
		}
		if insertBatch != nil {
			_ = insertBatch.Close()
		}
		if insertFailure != nil {
			_ = insertFailure.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	// Readers share the single connection, so commit as soon as the queue is
	// idle instead of holding the transaction open.
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if len(s.ch) == 0 || opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		if r.kind == reqSync {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRoll:
			rec := r.roll
			raw, _ := json.Marshal(rec)
			if insertRoll != nil {
				if _, err := tx.Stmt(insertRoll).Exec(
					rec.SessionID,
					rec.Roll,
					int64(rec.LaunchTick),
					int64(rec.Tick),
					rec.Faces[0],
					rec.Faces[1],
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqBatch:
			b := r.batch
			if insertBatch != nil {
				if _, err := tx.Stmt(insertBatch).Exec(
					b.SessionID,
					b.Target,
					b.Completed,
					int64(b.Tick),
					b.ChiSquared,
					b.Verdict,
					b.RecordedAt,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqFailure:
			f := r.failure
			if insertFailure != nil {
				if _, err := tx.Stmt(insertFailure).Exec(f.SessionID, f.Error, f.RecordedAt); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
