package indexdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"evacgrid.dev/internal/sim/evac"
)

// RunIndex is a secondary sqlite index of runs and exits, fed asynchronously
// so the simulation never waits on the database. The JSONL event log remains
// the source of truth; dropped index writes are acceptable.
type RunIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqExit reqKind = iota + 1
	reqSummary
)

type req struct {
	kind reqKind

	runID string
	at    time.Time

	exit    evac.ExitRecord
	summary evac.Summary
	params  evac.Params
}

func Open(path string) (*RunIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
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

	s := &RunIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-only write pattern.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
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
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			agents INTEGER NOT NULL,
			doors INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			evacuated INTEGER NOT NULL,
			stuck INTEGER NOT NULL,
			rate REAL NOT NULL,
			summary_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS exits (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			agent_id INTEGER NOT NULL,
			door_id INTEGER NOT NULL,
			at TEXT NOT NULL,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_exits_door ON exits(run_id, door_id, seq);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *RunIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordExit queues one exit row. Drops when the indexer falls behind.
func (s *RunIndex) RecordExit(runID string, rec evac.ExitRecord, at time.Time) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqExit, runID: runID, exit: rec, at: at}:
	default:
	}
}

// RecordSummary queues the end-of-run row. Blocks until accepted: the
// summary is written once and must not be dropped.
func (s *RunIndex) RecordSummary(runID string, started time.Time, p evac.Params, sum evac.Summary) {
	if s == nil || s.closed.Load() {
		return
	}
	s.ch <- req{kind: reqSummary, runID: runID, at: started, params: p, summary: sum}
}

func (s *RunIndex) loop() {
	var exitSeq int64
	for r := range s.ch {
		switch r.kind {
		case reqExit:
			exitSeq++
			_, _ = s.db.Exec(
				`INSERT OR REPLACE INTO exits (run_id, seq, agent_id, door_id, at) VALUES (?, ?, ?, ?, ?)`,
				r.runID, exitSeq, r.exit.AgentID, r.exit.DoorID, r.at.UTC().Format(time.RFC3339Nano),
			)
		case reqSummary:
			raw, err := json.Marshal(r.summary)
			if err != nil {
				continue
			}
			_, _ = s.db.Exec(
				`INSERT OR REPLACE INTO runs
				(run_id, started_at, width, height, agents, doors, seed, evacuated, stuck, rate, summary_json)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.runID, r.at.UTC().Format(time.RFC3339Nano),
				r.params.Width, r.params.Height, r.params.Agents, r.params.Doors, r.params.Seed,
				r.summary.Evacuated, r.summary.Stuck, r.summary.Rate, string(raw),
			)
		}
	}
}
