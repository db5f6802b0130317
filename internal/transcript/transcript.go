// Package transcript keeps a durable record of training sessions: every
// command the student ran and every puzzle they solved, with timestamps. The
// record survives undo; rewinding the sandbox does not rewrite history.
package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store writes session transcripts to a SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the transcript database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	// WAL mode so the recording writer never blocks a reader looking at
	// past sessions.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript database: %w", err)
	}

	// SQLite wants a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping transcript database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize transcript schema: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id  TEXT PRIMARY KEY,
		image       TEXT NOT NULL,
		started_at  INTEGER NOT NULL,
		ended_at    INTEGER,
		total_score INTEGER NOT NULL DEFAULT 0,
		final_score INTEGER NOT NULL DEFAULT 0,
		finished    INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS commands (
		session_id TEXT NOT NULL,
		seq        INTEGER NOT NULL,
		ran_at     INTEGER NOT NULL,
		line       TEXT NOT NULL,
		PRIMARY KEY (session_id, seq),
		FOREIGN KEY (session_id) REFERENCES sessions(session_id)
	);

	-- A puzzle can be solved, undone and solved again, so solves are a log,
	-- not a set.
	CREATE TABLE IF NOT EXISTS solves (
		session_id TEXT NOT NULL,
		puzzle_id  TEXT NOT NULL,
		template   TEXT NOT NULL,
		solved_at  INTEGER NOT NULL,
		flag       TEXT,
		FOREIGN KEY (session_id) REFERENCES sessions(session_id)
	);

	CREATE INDEX IF NOT EXISTS idx_commands_session ON commands(session_id);
	CREATE INDEX IF NOT EXISTS idx_solves_session ON solves(session_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// BeginSession records the start of a session.
func (s *Store) BeginSession(ctx context.Context, sessionID, image string, startedAt time.Time) error {
	query := `INSERT INTO sessions (session_id, image, started_at) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, sessionID, image, startedAt.Unix()); err != nil {
		return fmt.Errorf("failed to record session start: %w", err)
	}
	return nil
}

// RecordCommand records one command line the student ran. seq orders the
// commands within the session.
func (s *Store) RecordCommand(ctx context.Context, sessionID string, seq int, line string) error {
	query := `INSERT INTO commands (session_id, seq, ran_at, line) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, sessionID, seq, time.Now().Unix(), line); err != nil {
		return fmt.Errorf("failed to record command: %w", err)
	}
	return nil
}

// RecordSolve records a successful solve. flag is nil when the puzzle did not
// ask for one.
func (s *Store) RecordSolve(ctx context.Context, sessionID, puzzleID, template string, flag *string) error {
	query := `INSERT INTO solves (session_id, puzzle_id, template, solved_at, flag) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, sessionID, puzzleID, template, time.Now().Unix(), flag); err != nil {
		return fmt.Errorf("failed to record solve: %w", err)
	}
	return nil
}

// FinishSession records the end of a session and its final scores.
func (s *Store) FinishSession(ctx context.Context, sessionID string, endedAt time.Time, totalScore, finalScore int, finished bool) error {
	finishedInt := 0
	if finished {
		finishedInt = 1
	}
	query := `UPDATE sessions SET ended_at = ?, total_score = ?, final_score = ?, finished = ? WHERE session_id = ?`
	if _, err := s.db.ExecContext(ctx, query, endedAt.Unix(), totalScore, finalScore, finishedInt, sessionID); err != nil {
		return fmt.Errorf("failed to record session end: %w", err)
	}
	return nil
}

// Command is one recorded command line.
type Command struct {
	Seq   int
	RanAt int64
	Line  string
}

// SessionCommands returns a session's commands in the order they ran.
func (s *Store) SessionCommands(ctx context.Context, sessionID string) ([]Command, error) {
	query := `SELECT seq, ran_at, line FROM commands WHERE session_id = ? ORDER BY seq`
	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query commands: %w", err)
	}
	defer rows.Close()

	var commands []Command
	for rows.Next() {
		var c Command
		if err := rows.Scan(&c.Seq, &c.RanAt, &c.Line); err != nil {
			return nil, fmt.Errorf("failed to scan command: %w", err)
		}
		commands = append(commands, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating commands: %w", err)
	}
	return commands, nil
}
