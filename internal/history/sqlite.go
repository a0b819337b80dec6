package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"focusdojo/internal/puzzle"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

// SQLiteLedger keeps the ledger in a private in-memory database. A single
// connection is held open so the database lives as long as the ledger.
type SQLiteLedger struct {
	db *sql.DB
}

func NewSQLite(ctx context.Context) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	l := &SQLiteLedger{db: db}
	if err := l.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *SQLiteLedger) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			mode TEXT NOT NULL,
			difficulty TEXT NOT NULL,
			prompt TEXT NOT NULL DEFAULT '',
			level_number INTEGER NOT NULL DEFAULT 0,
			start_ts TEXT NOT NULL,
			end_ts TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			target INTEGER NOT NULL,
			success INTEGER NOT NULL DEFAULT 0,
			accuracy INTEGER NOT NULL DEFAULT 0,
			aborted INTEGER NOT NULL DEFAULT 0,
			markers_json TEXT NOT NULL DEFAULT '[]'
		);`,
	}
	for _, stmt := range stmts {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (l *SQLiteLedger) Record(ctx context.Context, s puzzle.Summary) error {
	markers := s.Markers
	if markers == nil {
		markers = []puzzle.Marker{}
	}
	raw, err := json.Marshal(markers)
	if err != nil {
		return fmt.Errorf("encode markers: %w", err)
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO sessions(session_id, mode, difficulty, prompt, level_number, start_ts, end_ts, attempts, target, success, accuracy, aborted, markers_json)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.ID,
		string(s.Mode),
		s.Difficulty.String(),
		s.Prompt,
		s.LevelNumber,
		s.Start.UTC().Format(timeLayout),
		s.End.UTC().Format(timeLayout),
		s.Attempts,
		s.Target,
		boolInt(s.Success),
		s.Accuracy,
		boolInt(s.Aborted),
		string(raw),
	)
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) All(ctx context.Context) ([]puzzle.Summary, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT session_id, mode, difficulty, prompt, level_number, start_ts, end_ts, attempts, target, success, accuracy, aborted, markers_json
		 FROM sessions ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := []puzzle.Summary{}
	for rows.Next() {
		var (
			s                puzzle.Summary
			mode, diff       string
			startTS, endTS   string
			success, aborted int
			markersJSON      string
		)
		if err := rows.Scan(&s.ID, &mode, &diff, &s.Prompt, &s.LevelNumber, &startTS, &endTS,
			&s.Attempts, &s.Target, &success, &s.Accuracy, &aborted, &markersJSON); err != nil {
			return nil, err
		}
		s.Mode = puzzle.Mode(mode)
		if s.Difficulty, err = puzzle.ParseDifficulty(diff); err != nil {
			return nil, err
		}
		if s.Start, err = time.Parse(timeLayout, startTS); err != nil {
			return nil, fmt.Errorf("parse start_ts: %w", err)
		}
		if s.End, err = time.Parse(timeLayout, endTS); err != nil {
			return nil, fmt.Errorf("parse end_ts: %w", err)
		}
		s.Success = success == 1
		s.Aborted = aborted == 1
		if err := json.Unmarshal([]byte(markersJSON), &s.Markers); err != nil {
			return nil, fmt.Errorf("decode markers: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (l *SQLiteLedger) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var mean sql.NullFloat64
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(success), 0), AVG(accuracy) FROM sessions`,
	).Scan(&st.Sessions, &st.Successes, &mean)
	if err != nil {
		return Stats{}, fmt.Errorf("session stats: %w", err)
	}
	if mean.Valid {
		st.MeanAccuracy = int(mean.Float64 + 0.5)
	}

	rows, err := l.db.QueryContext(ctx, `SELECT success FROM sessions ORDER BY seq ASC`)
	if err != nil {
		return Stats{}, fmt.Errorf("session streak: %w", err)
	}
	defer rows.Close()
	streak := 0
	for rows.Next() {
		var success int
		if err := rows.Scan(&success); err != nil {
			return Stats{}, err
		}
		if success == 1 {
			streak++
			if streak > st.BestStreak {
				st.BestStreak = streak
			}
		} else {
			streak = 0
		}
	}
	return st, rows.Err()
}

func (l *SQLiteLedger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// New builds the ledger for a configured backend name.
func New(ctx context.Context, backend string) (Ledger, error) {
	switch backend {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(ctx)
	default:
		return nil, fmt.Errorf("unknown history backend %q", backend)
	}
}
