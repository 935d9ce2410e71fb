// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sessions manages the lifecycle of chat sessions.
//
// # Description
//
// Manager is the only component that creates session identifiers and seed
// sessions. It sits between the HTTP handlers / turn orchestrator and the
// Store, enforcing identity and initial-state rules.
package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianChat/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/store"
)

// Manager creates, fetches, updates and removes sessions.
//
// # Thread Safety
//
// Remove, Rename and SetForcedMode hold the session's lock from Lock for
// their whole read-modify-write, so they never interleave with a turn
// holding the same lock. Get, Create and ListSummaries rely on the Store.
type Manager struct {
	store   store.Store
	logger  *slog.Logger
	metrics *observability.ChatMetrics
	locks   *keyedMutex

	// now and newID are swappable in tests.
	now   func() time.Time
	newID func() string
}

// NewManager returns a Manager over s.
//
// # Inputs
//
//   - s: Backing store. Required.
//   - logger: Optional; slog.Default() when nil.
//   - metrics: Optional; nil disables lifecycle counters.
func NewManager(s store.Store, logger *slog.Logger, metrics *observability.ChatMetrics) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:   s,
		logger:  logger,
		metrics: metrics,
		locks:   newKeyedMutex(),
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// Create persists a new seed session and returns its identifier.
//
// # Description
//
// The identifier is a random (version 4) UUID. The seed session has title
// "New Chat", the current time as CreatedAt, exactly one assistant greeting,
// empty memory and no forced mode.
//
// # Outputs
//
//   - string: The new session id.
//   - error: Storage failure; no id is returned in that case.
func (m *Manager) Create(ctx context.Context) (string, error) {
	id := m.newID()
	sess := datatypes.NewSession(m.now().UnixMilli())

	if err := m.store.Put(ctx, id, sess); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	m.metrics.RecordSessionCreated()
	m.logger.Info("session created", "session_id", id)
	return id, nil
}

// Get returns an owned copy of the session or datatypes.ErrNotFound.
func (m *Manager) Get(ctx context.Context, id string) (*datatypes.Session, error) {
	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Lock blocks until no other holder has the session's lock and returns the
// unlock function.
//
// # Description
//
// A caller that reads a session, works on it and commits it back holds
// this lock across the whole sequence. Remove, Rename and SetForcedMode
// take it themselves, so a caller holding it must not call them.
func (m *Manager) Lock(id string) (unlock func()) {
	return m.locks.lock(id)
}

// Remove deletes the session and reports whether it existed.
//
// Removing an unknown id is a no-op returning false and no error. A turn in
// flight on the session finishes first and the session is deleted after it.
func (m *Manager) Remove(ctx context.Context, id string) (bool, error) {
	unlock := m.Lock(id)
	defer unlock()

	existed, err := m.store.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("remove session %s: %w", id, err)
	}
	if existed {
		m.metrics.RecordSessionDeleted()
		m.logger.Info("session deleted", "session_id", id)
	}
	return existed, nil
}

// ListSummaries returns every session summary, most recently created first.
//
// Sessions created in the same millisecond are ordered by id so the result
// is deterministic.
func (m *Manager) ListSummaries(ctx context.Context) ([]datatypes.SessionSummary, error) {
	list, err := m.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt != list[j].CreatedAt {
			return list[i].CreatedAt > list[j].CreatedAt
		}
		return list[i].ChatID < list[j].ChatID
	})
	return list, nil
}

// Commit stores a complete session snapshot produced by a turn.
//
// The caller must hold Lock(id) from the read that produced sess.
func (m *Manager) Commit(ctx context.Context, id string, sess *datatypes.Session) error {
	if err := m.store.Put(ctx, id, sess); err != nil {
		return fmt.Errorf("commit session %s: %w", id, err)
	}
	return nil
}

// Rename replaces the display title of an existing session.
//
// # Inputs
//
//   - title: New title. Surrounding whitespace is trimmed; blank titles are
//     rejected with datatypes.ErrInvalidRequest.
func (m *Manager) Rename(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: title is required", datatypes.ErrInvalidRequest)
	}
	return m.update(ctx, id, func(s *datatypes.Session) {
		s.Title = title
	})
}

// SetForcedMode sets or, when mode is nil, clears the session's mode override.
func (m *Manager) SetForcedMode(ctx context.Context, id string, mode *datatypes.ModeID) error {
	if mode != nil && !mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", datatypes.ErrInvalidRequest, *mode)
	}
	return m.update(ctx, id, func(s *datatypes.Session) {
		if mode == nil {
			s.ForcedMode = nil
			return
		}
		v := *mode
		s.ForcedMode = &v
	})
}

func (m *Manager) update(ctx context.Context, id string, mutate func(*datatypes.Session)) error {
	unlock := m.Lock(id)
	defer unlock()

	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	mutate(sess)
	return m.Commit(ctx, id, sess)
}
