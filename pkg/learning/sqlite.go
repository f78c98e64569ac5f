package learning

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists the state row plus an append-only adjustment audit
// table, pruned to the history cap.
type SQLiteStore struct {
	db         *sql.DB
	historyCap int
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string, historyCap int) (*SQLiteStore, error) {
	if historyCap < 1 {
		historyCap = DefaultParameters().HistoryCap
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, &PersistenceError{Op: "init", Err: err}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS learning_state (
		id                     INTEGER PRIMARY KEY CHECK (id = 1),
		schema                 TEXT NOT NULL,
		global_sensitivity     REAL NOT NULL,
		phrase_adjustments     TEXT NOT NULL DEFAULT '{}',
		daily_adjustment_count INTEGER NOT NULL DEFAULT 0,
		last_reset_date        TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS adjustment_events (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		ts            DATETIME NOT NULL,
		feedback_type TEXT NOT NULL,
		old_threshold REAL NOT NULL,
		new_threshold REAL NOT NULL,
		delta         REAL NOT NULL,
		severity      REAL NOT NULL,
		crisis_level  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_adjustment_events_ts ON adjustment_events(ts);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &PersistenceError{Op: "init", Err: err}
	}

	return &SQLiteStore{db: db, historyCap: historyCap}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads the state row and replays the newest audit entries into the
// in-memory history.
func (s *SQLiteStore) Load() (State, bool, error) {
	var st State
	var phrases string
	err := s.db.QueryRow(
		`SELECT schema, global_sensitivity, phrase_adjustments, daily_adjustment_count, last_reset_date
		 FROM learning_state WHERE id = 1`,
	).Scan(&st.Schema, &st.GlobalSensitivity, &phrases, &st.DailyAdjustmentCount, &st.LastResetDate)
	if err == sql.ErrNoRows {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, &PersistenceError{Op: "load", Err: err}
	}

	if err := json.Unmarshal([]byte(phrases), &st.PhraseAdjustments); err != nil {
		return State{}, false, &PersistenceError{Op: "load", Err: err}
	}

	rows, err := s.db.Query(
		`SELECT ts, feedback_type, old_threshold, new_threshold, delta, severity, crisis_level
		 FROM (SELECT * FROM adjustment_events ORDER BY id DESC LIMIT ?)
		 ORDER BY id ASC`, s.historyCap)
	if err != nil {
		return State{}, false, &PersistenceError{Op: "load", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var ev AdjustmentEvent
		var ts time.Time
		if err := rows.Scan(&ts, &ev.FeedbackType, &ev.OldThreshold, &ev.NewThreshold,
			&ev.Delta, &ev.Severity, &ev.CrisisLevel); err != nil {
			return State{}, false, &PersistenceError{Op: "load", Err: err}
		}
		ev.Timestamp = ts.UTC()
		st.History = append(st.History, ev)
	}
	if err := rows.Err(); err != nil {
		return State{}, false, &PersistenceError{Op: "load", Err: err}
	}

	st.normalize()
	return st, true, nil
}

// Save upserts the state row and appends the new audit entries in one
// transaction, pruning entries beyond the history cap.
func (s *SQLiteStore) Save(state State, appended []AdjustmentEvent) error {
	phrases, err := json.Marshal(state.PhraseAdjustments)
	if err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO learning_state (id, schema, global_sensitivity, phrase_adjustments, daily_adjustment_count, last_reset_date)
		 VALUES (1, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			schema = excluded.schema,
			global_sensitivity = excluded.global_sensitivity,
			phrase_adjustments = excluded.phrase_adjustments,
			daily_adjustment_count = excluded.daily_adjustment_count,
			last_reset_date = excluded.last_reset_date`,
		state.Schema, state.GlobalSensitivity, string(phrases),
		state.DailyAdjustmentCount, state.LastResetDate,
	)
	if err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}

	for _, ev := range appended {
		_, err = tx.Exec(
			`INSERT INTO adjustment_events (ts, feedback_type, old_threshold, new_threshold, delta, severity, crisis_level)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ev.Timestamp.UTC(), ev.FeedbackType, ev.OldThreshold, ev.NewThreshold,
			ev.Delta, ev.Severity, ev.CrisisLevel,
		)
		if err != nil {
			return &PersistenceError{Op: "save", Err: err}
		}
	}

	_, err = tx.Exec(
		`DELETE FROM adjustment_events WHERE id NOT IN
		 (SELECT id FROM adjustment_events ORDER BY id DESC LIMIT ?)`, s.historyCap)
	if err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}
	return nil
}
