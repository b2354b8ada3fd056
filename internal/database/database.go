// Package database records dispatched analytics calls in a local SQLite file.
package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // CGO-free SQLite

	"github.com/vincentbai/pagetrace/internal/errors"
	"github.com/vincentbai/pagetrace/internal/models"
)

// DefaultListLimit caps ListCalls when no limit is given.
const DefaultListLimit = 100

type Database struct {
	db            *sql.DB
	logger        zerolog.Logger
	validCommands map[string]bool
}

func NewDatabase(databasePath string, logger zerolog.Logger) (*Database, error) {
	// WAL + busy timeout to avoid "database is locked"
	db, err := sql.Open("sqlite", databasePath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Database{
		db:     db,
		logger: logger,
		validCommands: map[string]bool{
			models.CommandConfig: true,
			models.CommandEvent:  true,
		},
	}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS calls(
	  id          INTEGER PRIMARY KEY,
	  ts_utc      INTEGER NOT NULL,
	  ts_iso      TEXT    NOT NULL,
	  client_id   TEXT    NOT NULL,
	  command     TEXT    NOT NULL CHECK (command IN ('config','event')),
	  target      TEXT    NOT NULL,
	  params_json TEXT    NOT NULL CHECK (json_valid(params_json))
	);
	CREATE INDEX IF NOT EXISTS idx_calls_ts     ON calls(ts_utc);
	CREATE INDEX IF NOT EXISTS idx_calls_client ON calls(client_id);
	CREATE INDEX IF NOT EXISTS idx_calls_target ON calls(target);
	`)
	if err != nil {
		return fmt.Errorf("failed to create database tables: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) ValidateCall(call models.Call) error {
	if call.Command == "" {
		return errors.NewValidationError("command", call.Command, "cannot be empty")
	}
	if !d.validCommands[call.Command] {
		return errors.NewValidationError("command", call.Command, "invalid command")
	}
	if call.Target == "" {
		return errors.NewValidationError("target", call.Target, "cannot be empty")
	}
	if call.TSUTC <= 0 {
		return errors.NewValidationError("ts_utc", call.TSUTC, "timestamp must be positive")
	}
	return nil
}

func (d *Database) InsertCalls(calls []models.Call) error {
	transaction, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	statement, err := transaction.Prepare(`INSERT INTO calls(ts_utc, ts_iso, client_id, command, target, params_json) VALUES(?,?,?,?,?,json(?))`)
	if err != nil {
		_ = transaction.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer statement.Close()

	for _, call := range calls {
		if err := d.ValidateCall(call); err != nil {
			_ = transaction.Rollback()
			return fmt.Errorf("invalid call: %w", err)
		}

		params := call.Params
		if params == nil {
			params = map[string]any{}
		}
		jsonParams, err := json.Marshal(params)
		if err != nil {
			_ = transaction.Rollback()
			return fmt.Errorf("failed to marshal call params: %w", err)
		}
		if _, err := statement.Exec(call.TSUTC, call.TSISO, call.ClientID, call.Command, call.Target, string(jsonParams)); err != nil {
			_ = transaction.Rollback()
			return fmt.Errorf("failed to execute statement: %w", err)
		}
	}
	if err := transaction.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Dispatch records one call. Failures are logged; analytics delivery is
// fire-and-forget.
func (d *Database) Dispatch(call models.Call) {
	if err := d.InsertCalls([]models.Call{call}); err != nil {
		d.logger.Warn().
			Err(err).
			Str("command", call.Command).
			Str("target", call.Target).
			Msg("Failed to record analytics call")
	}
}

// ListCalls returns the most recent calls, oldest first, optionally for one
// client only.
func (d *Database) ListCalls(clientID string, limit int) ([]models.Call, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT id, ts_utc, ts_iso, client_id, command, target, params_json FROM calls`
	args := []any{}
	if clientID != "" {
		query += ` WHERE client_id = ?`
		args = append(args, clientID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query calls: %w", err)
	}
	defer rows.Close()

	var calls []models.Call
	for rows.Next() {
		var call models.Call
		var paramsJSON string
		if err := rows.Scan(&call.ID, &call.TSUTC, &call.TSISO, &call.ClientID, &call.Command, &call.Target, &paramsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}
		if err := json.Unmarshal([]byte(paramsJSON), &call.Params); err != nil {
			return nil, fmt.Errorf("failed to decode params of call %d: %w", call.ID, err)
		}
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read calls: %w", err)
	}

	slices.Reverse(calls)
	return calls, nil
}
