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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	k := newKeyedMutex()
	var active, maxActive atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.lock("same")
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive.Load())
	assert.Equal(t, 0, k.size())
}

func TestManager_AdminWritesWaitForSessionLock(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	id, err := m.Create(ctx)
	require.NoError(t, err)

	unlock := m.Lock(id)

	renamed := make(chan error, 1)
	go func() { renamed <- m.Rename(ctx, id, "Waited") }()

	select {
	case <-renamed:
		t.Fatal("rename ran while the session lock was held")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	require.NoError(t, <-renamed)

	sess, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Waited", sess.Title)

	existed, err := m.Remove(ctx, id)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, 0, m.locks.size())
}

func TestManager_LockIsPerSession(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	a, err := m.Create(ctx)
	require.NoError(t, err)
	b, err := m.Create(ctx)
	require.NoError(t, err)

	unlock := m.Lock(a)
	defer unlock()

	done := make(chan error, 1)
	go func() { done <- m.Rename(ctx, b, "Other") }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("rename of another session blocked on an unrelated lock")
	}
}
