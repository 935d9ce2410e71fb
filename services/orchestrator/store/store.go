// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store provides durable id -> Session storage for the orchestrator.
//
// Three backends implement Store:
//
//	document  one JSON document holding every session (default)
//	badger    one BadgerDB key per session
//	sqlite    one SQLite row per session
//
// Every backend hands out owned copies from Get, so a caller may mutate the
// returned Session freely and commit it back with Put.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianChat/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/observability"
)

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = datatypes.ErrNotFound

// Store is the persistence contract for sessions.
//
// # Description
//
// Get, Put, Delete and List are the only operations. Put replaces the whole
// record for an id; there is no partial update.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. A Put to one id must never
// drop a concurrent Put to a different id.
type Store interface {
	// Get returns an owned copy of the session, or ErrNotFound.
	Get(ctx context.Context, id string) (*datatypes.Session, error)

	// Put stores s under id, replacing any previous record.
	Put(ctx context.Context, id string, s *datatypes.Session) error

	// Delete removes id and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)

	// List returns a summary for every stored session in no particular order.
	List(ctx context.Context) ([]datatypes.SessionSummary, error)

	// Close releases the backing resources.
	Close() error
}

// Backend names a Store implementation.
type Backend string

const (
	BackendDocument Backend = "document"
	BackendBadger   Backend = "badger"
	BackendSQLite   Backend = "sqlite"
)

// Options selects and configures a backend for Open.
type Options struct {
	// Backend chooses the implementation. Empty means BackendDocument.
	Backend Backend

	// Path is the JSON file (document), directory (badger) or database
	// file (sqlite). Ignored for an in-memory badger store.
	Path string

	// InMemory opens badger without disk persistence. Tests only.
	InMemory bool

	Logger  *slog.Logger
	Metrics *observability.ChatMetrics
}

// Open builds the configured backend wrapped with metrics and tracing.
//
// # Inputs
//
//   - opts: Backend selection and location.
//
// # Outputs
//
//   - Store: Ready to use. Caller must Close it.
//   - error: Unknown backend or a failure opening the medium.
func Open(opts Options) (Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		s   Store
		err error
	)
	backend := opts.Backend
	if backend == "" {
		backend = BackendDocument
	}

	switch backend {
	case BackendDocument:
		s, err = NewDocumentStore(opts.Path, logger)
	case BackendBadger:
		cfg := DefaultBadgerConfig()
		cfg.Path = opts.Path
		cfg.InMemory = opts.InMemory
		cfg.Logger = logger
		s, err = OpenBadgerStore(cfg)
	case BackendSQLite:
		s, err = OpenSQLiteStore(opts.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("session store opened", "backend", string(backend), "path", opts.Path)
	return NewInstrumented(s, string(backend), opts.Metrics), nil
}
