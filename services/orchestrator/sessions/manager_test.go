// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sessions

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianChat/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/store"
)

func newTestManager(t *testing.T) (*Manager, store.Store) {
	t.Helper()
	s, err := store.OpenBadgerStore(store.InMemoryBadgerConfig())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewManager(s, nil, nil), s
}

func TestManager_CreateSeedsSession(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	fixed := time.UnixMilli(1700000000123)
	m.now = func() time.Time { return fixed }

	id, err := m.Create(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	sess, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, datatypes.DefaultTitle, sess.Title)
	assert.Equal(t, fixed.UnixMilli(), sess.CreatedAt)
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, datatypes.RoleAssistant, sess.Messages[0].Role)
	assert.NotEmpty(t, sess.Messages[0].Content)
	assert.Empty(t, sess.Memory)
	assert.Nil(t, sess.ForcedMode)
}

func TestManager_CreateUniqueIDs(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	const n = 10000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		id, err := m.Create(ctx)
		require.NoError(t, err)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s after %d creations", id, i)
		seen[id] = struct{}{}
	}

	list, err := m.ListSummaries(ctx)
	require.NoError(t, err)
	assert.Len(t, list, n)
}

func TestManager_GetUnknown(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, datatypes.ErrNotFound)
}

func TestManager_RemoveTwice(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	id, err := m.Create(ctx)
	require.NoError(t, err)

	existed, err := m.Remove(ctx, id)
	require.NoError(t, err)
	assert.True(t, existed)

	list, err := m.ListSummaries(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	existed, err = m.Remove(ctx, id)
	require.NoError(t, err)
	assert.False(t, existed)

	list, err = m.ListSummaries(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestManager_ListSummariesNewestFirst(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	times := []int64{2000, 1000, 3000, 3000}
	ids := []string{"b", "a", "d", "c"}
	// Create calls newID before now.
	i := 0
	m.newID = func() string { return ids[i] }
	m.now = func() time.Time { ts := times[i]; i++; return time.UnixMilli(ts) }

	for range times {
		_, err := m.Create(ctx)
		require.NoError(t, err)
	}

	list, err := m.ListSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, list, 4)

	got := make([]string, len(list))
	for i, s := range list {
		got[i] = s.ChatID
	}
	assert.Equal(t, []string{"c", "d", "b", "a"}, got)
	assert.Equal(t, datatypes.DefaultTitle, list[0].Title)
}

func TestManager_Rename(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	id, err := m.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Rename(ctx, id, "  Thermodynamics  "))
	sess, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Thermodynamics", sess.Title)
	assert.Len(t, sess.Messages, 1, "rename must not touch the transcript")

	assert.ErrorIs(t, m.Rename(ctx, id, "   "), datatypes.ErrInvalidRequest)
	assert.ErrorIs(t, m.Rename(ctx, "missing", "x"), datatypes.ErrNotFound)
}

func TestManager_SetForcedMode(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	id, err := m.Create(ctx)
	require.NoError(t, err)

	concise := datatypes.ModeConcise
	require.NoError(t, m.SetForcedMode(ctx, id, &concise))
	sess, err := m.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, sess.ForcedMode)
	assert.Equal(t, datatypes.ModeConcise, *sess.ForcedMode)

	require.NoError(t, m.SetForcedMode(ctx, id, nil))
	sess, err = m.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, sess.ForcedMode)

	bogus := datatypes.ModeID("poetry")
	assert.ErrorIs(t, m.SetForcedMode(ctx, id, &bogus), datatypes.ErrInvalidRequest)
}

func TestManager_LifecycleMetrics(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewDocumentStore(filepath.Join(t.TempDir(), "sessions.json"), nil)
	require.NoError(t, err)
	metrics := observability.NewChatMetrics(prometheus.NewRegistry())
	m := NewManager(s, nil, metrics)

	id, err := m.Create(ctx)
	require.NoError(t, err)
	_, err = m.Remove(ctx, id)
	require.NoError(t, err)
	_, err = m.Remove(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionsCreatedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionsDeletedTotal))
}
