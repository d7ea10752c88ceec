// Package journal persists the outcome of every daily delivery attempt in
// SQLite. The bot only ever sends one message per day, so the table stays
// tiny; it exists so "did it actually go out last night" has a better
// answer than scrolling logs.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	btclog "github.com/btcsuite/btclog/v2"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Outcome classifies a single delivery attempt.
type Outcome string

const (
	// OutcomeSent means the message was handed to the transport
	// successfully.
	OutcomeSent Outcome = "sent"

	// OutcomeSkippedClosed means the session was not open when the
	// message timer fired, so no send was attempted.
	OutcomeSkippedClosed Outcome = "skipped-session-closed"

	// OutcomeTransportError means the send was attempted and failed.
	OutcomeTransportError Outcome = "transport-error"
)

// Entry is one delivery attempt.
type Entry struct {
	ID        string
	Recipient string
	Message   string
	Outcome   Outcome
	SendError string
	SentAt    time.Time
}

// Store wraps the SQLite database holding the delivery log. The same
// database file also hosts the messaging library's device credentials.
type Store struct {
	db  *sql.DB
	log btclog.Logger
}

// Open opens (creating if necessary) the database at dbPath and applies
// pending migrations.
func Open(dbPath string, log btclog.Logger) (*Store, error) {
	db, err := OpenSQLite(dbPath)
	if err != nil {
		return nil, err
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to migrate journal: %w", err)
	}

	return &Store{
		db:  db,
		log: log,
	}, nil
}

// OpenSQLite opens a SQLite database with WAL mode and the pragmas this
// daemon wants. The connection pool is pinned to a single connection:
// SQLite allows one writer and this process is the only user.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("unable to create database "+
			"directory: %w", err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000",
		dbPath,
	)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to configure database: %w", err)
	}

	return db, nil
}

// DB exposes the underlying handle so the messaging library's credential
// store can share the same file.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordDelivery inserts one delivery attempt. A missing ID is filled in.
func (s *Store) RecordDelivery(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO delivery_log (
			id, recipient, message, outcome, send_error, sent_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Recipient, entry.Message, string(entry.Outcome),
		entry.SendError, entry.SentAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("unable to record delivery: %w", err)
	}

	s.log.Debugf("Recorded delivery %s (%s)", entry.ID, entry.Outcome)

	return nil
}

// RecentDeliveries returns the most recent attempts, newest first.
func (s *Store) RecentDeliveries(ctx context.Context, limit int) ([]Entry,
	error) {

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recipient, message, outcome, send_error, sent_at
		FROM delivery_log
		ORDER BY sent_at DESC, id
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to query deliveries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry   Entry
			outcome string
			sentAt  int64
		)
		err := rows.Scan(
			&entry.ID, &entry.Recipient, &entry.Message, &outcome,
			&entry.SendError, &sentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("unable to scan delivery: %w",
				err)
		}

		entry.Outcome = Outcome(outcome)
		entry.SentAt = time.Unix(sentAt, 0).UTC()
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
