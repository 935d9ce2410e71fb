// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/AleutianAI/AleutianChat/services/orchestrator/datatypes"
)

const createSessionsTableSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id          TEXT PRIMARY KEY,
    title       TEXT NOT NULL,
    created_at  INTEGER NOT NULL,
    memory      TEXT NOT NULL DEFAULT '',
    forced_mode TEXT,
    messages    TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at);
`

// SQLiteStore stores one session per SQLite row.
//
// # Description
//
// Scalar fields get their own columns so List never decodes transcripts.
// Messages are stored as a JSON array. Put is a single INSERT OR REPLACE,
// which is atomic per row.
//
// # Thread Safety
//
// Safe for concurrent use. The pool is limited to one connection so SQLite
// never reports SQLITE_BUSY to a writer in this process.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLiteStore opens (or creates) the database at path and ensures the
// schema exists. The special path ":memory:" opens a private in-memory
// database.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite store path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, &datatypes.StorageError{Op: "mkdir", Path: filepath.Dir(path), Err: err}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &datatypes.StorageError{Op: "open", Path: path, Err: err}
	}
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, &datatypes.StorageError{Op: "pragma", Path: path, Err: err}
		}
	}
	if _, err := db.Exec(createSessionsTableSQL); err != nil {
		db.Close()
		return nil, &datatypes.StorageError{Op: "migrate", Path: path, Err: err}
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*datatypes.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT title, created_at, memory, forced_mode, messages
		FROM sessions WHERE id = ?`, id)

	var (
		sess     datatypes.Session
		forced   sql.NullString
		msgsJSON string
	)
	err := row.Scan(&sess.Title, &sess.CreatedAt, &sess.Memory, &forced, &msgsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &datatypes.StorageError{Op: "get", Path: s.path, Err: err}
	}
	if err := json.Unmarshal([]byte(msgsJSON), &sess.Messages); err != nil {
		return nil, &datatypes.StorageError{Op: "decode", Path: id, Err: err}
	}
	if forced.Valid {
		m := datatypes.ModeID(forced.String)
		sess.ForcedMode = &m
	}
	return &sess, nil
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, id string, sess *datatypes.Session) error {
	if sess == nil {
		return fmt.Errorf("put %s: nil session", id)
	}
	msgsJSON, err := json.Marshal(sess.Messages)
	if err != nil {
		return &datatypes.StorageError{Op: "encode", Path: id, Err: err}
	}
	var forced sql.NullString
	if sess.ForcedMode != nil {
		forced = sql.NullString{String: string(*sess.ForcedMode), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions (id, title, created_at, memory, forced_mode, messages)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, sess.Title, sess.CreatedAt, sess.Memory, forced, string(msgsJSON),
	)
	if err != nil {
		return &datatypes.StorageError{Op: "put", Path: s.path, Err: err}
	}
	return nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return false, &datatypes.StorageError{Op: "delete", Path: s.path, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &datatypes.StorageError{Op: "delete", Path: s.path, Err: err}
	}
	return n > 0, nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context) ([]datatypes.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, created_at FROM sessions`)
	if err != nil {
		return nil, &datatypes.StorageError{Op: "list", Path: s.path, Err: err}
	}
	defer rows.Close()

	out := make([]datatypes.SessionSummary, 0)
	for rows.Next() {
		var sum datatypes.SessionSummary
		if err := rows.Scan(&sum.ChatID, &sum.Title, &sum.CreatedAt); err != nil {
			return nil, &datatypes.StorageError{Op: "scan", Path: s.path, Err: err}
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, &datatypes.StorageError{Op: "list", Path: s.path, Err: err}
	}
	return out, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
