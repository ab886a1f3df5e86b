// Package audit persists session and fixp connection transitions to
// SQLite for post-mortem review, adapted from the market-data database's
// WAL-mode, prepared-statement storage idiom (database.MarketDataDb) -
// swapping trade/order-book/OHLCV rows for state-transition rows.
package audit

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/quaysystems/fixengine/fixp"
	"github.com/quaysystems/fixengine/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_transitions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	from_state TEXT NOT NULL,
	to_state TEXT NOT NULL,
	event TEXT NOT NULL,
	reason TEXT,
	occurred_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_transitions_session_id ON session_transitions(session_id);

CREATE TABLE IF NOT EXISTS connection_transitions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	connection_id INTEGER NOT NULL,
	from_state TEXT NOT NULL,
	to_state TEXT NOT NULL,
	event TEXT NOT NULL,
	reason TEXT,
	occurred_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_connection_transitions_connection_id ON connection_transitions(connection_id);
`

const insertSessionTransitionQuery = `
INSERT INTO session_transitions (session_id, from_state, to_state, event, reason, occurred_at)
VALUES (?, ?, ?, ?, ?, ?)`

const insertConnectionTransitionQuery = `
INSERT INTO connection_transitions (connection_id, from_state, to_state, event, reason, occurred_at)
VALUES (?, ?, ?, ?, ?, ?)`

// Config configures the transition log.
type Config struct {
	DBPath string
	Logger *zap.Logger
}

// Log is a SQLite-backed transition log implementing both session.AuditSink
// and fixp.AuditSink, so one database can back both state machines.
type Log struct {
	db     *sql.DB
	logger *zap.Logger

	stmtSession    *sql.Stmt
	stmtConnection *sql.Stmt
}

// Open creates (if needed) and connects to the transition log database at
// cfg.DBPath, matching database.NewMarketDataDb's WAL/synchronous/cache
// pragmas so the audit log tolerates the same write volume as market data
// did.
func Open(cfg Config) (*Log, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("audit: open database: %w", err)
	}

	l := &Log{db: db, logger: cfg.Logger}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: init schema: %w", err)
	}

	if l.stmtSession, err = db.Prepare(insertSessionTransitionQuery); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: prepare session statement: %w", err)
	}
	if l.stmtConnection, err = db.Prepare(insertConnectionTransitionQuery); err != nil {
		_ = l.stmtSession.Close()
		_ = db.Close()
		return nil, fmt.Errorf("audit: prepare connection statement: %w", err)
	}

	l.logger.Info("audit: transition log initialized", zap.String("path", cfg.DBPath))
	return l, nil
}

// Close releases the prepared statements and the underlying connection.
func (l *Log) Close() error {
	if l.stmtSession != nil {
		_ = l.stmtSession.Close()
	}
	if l.stmtConnection != nil {
		_ = l.stmtConnection.Close()
	}
	return l.db.Close()
}

// SessionTransition implements session.AuditSink.
func (l *Log) SessionTransition(sessionID string, from, to session.State, event, reason string) {
	if _, err := l.stmtSession.Exec(sessionID, from.String(), to.String(), event, reason, now()); err != nil {
		l.logger.Error("audit: failed to record session transition",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}

// ConnectionTransition implements fixp.AuditSink.
func (l *Log) ConnectionTransition(connectionID uint64, from, to fixp.State, event, reason string) {
	if _, err := l.stmtConnection.Exec(int64(connectionID), from.String(), to.String(), event, reason, now()); err != nil {
		l.logger.Error("audit: failed to record connection transition",
			zap.Uint64("connection_id", connectionID),
			zap.Error(err),
		)
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
