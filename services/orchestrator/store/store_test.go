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
	"fmt"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianChat/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/observability"
)

// backendFactories opens a fresh, empty store of every backend.
func backendFactories() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"document": func(t *testing.T) Store {
			s, err := NewDocumentStore(filepath.Join(t.TempDir(), "sessions.json"), nil)
			require.NoError(t, err)
			return s
		},
		"badger": func(t *testing.T) Store {
			s, err := OpenBadgerStore(InMemoryBadgerConfig())
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
			require.NoError(t, err)
			return s
		},
	}
}

func testSession(title string, createdAt int64) *datatypes.Session {
	s := datatypes.NewSession(createdAt)
	s.Title = title
	return s
}

// TestStoreContract runs the same behavioural checks against every backend.
func TestStoreContract(t *testing.T) {
	for name, open := range backendFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("get unknown returns ErrNotFound", func(t *testing.T) {
				s := open(t)
				defer s.Close()

				_, err := s.Get(ctx, "missing")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("put then get round trips every field", func(t *testing.T) {
				s := open(t)
				defer s.Close()

				in := testSession("Roundtrip", 1700000000000)
				in.Append(datatypes.RoleUser, "hello")
				in.Memory = "hello"
				forced := datatypes.ModeExam
				in.ForcedMode = &forced
				require.NoError(t, s.Put(ctx, "a", in))

				out, err := s.Get(ctx, "a")
				require.NoError(t, err)
				assert.Equal(t, in, out)
			})

			t.Run("get returns an owned copy", func(t *testing.T) {
				s := open(t)
				defer s.Close()

				require.NoError(t, s.Put(ctx, "a", testSession("T", 1)))
				first, err := s.Get(ctx, "a")
				require.NoError(t, err)
				first.Append(datatypes.RoleUser, "not committed")
				first.Title = "changed"

				second, err := s.Get(ctx, "a")
				require.NoError(t, err)
				assert.Len(t, second.Messages, 1)
				assert.Equal(t, "T", second.Title)
			})

			t.Run("put replaces the whole record", func(t *testing.T) {
				s := open(t)
				defer s.Close()

				require.NoError(t, s.Put(ctx, "a", testSession("old", 1)))
				require.NoError(t, s.Put(ctx, "a", testSession("new", 1)))

				got, err := s.Get(ctx, "a")
				require.NoError(t, err)
				assert.Equal(t, "new", got.Title)

				list, err := s.List(ctx)
				require.NoError(t, err)
				assert.Len(t, list, 1)
			})

			t.Run("delete twice reports existed then not", func(t *testing.T) {
				s := open(t)
				defer s.Close()

				require.NoError(t, s.Put(ctx, "a", testSession("T", 1)))

				existed, err := s.Delete(ctx, "a")
				require.NoError(t, err)
				assert.True(t, existed)

				existed, err = s.Delete(ctx, "a")
				require.NoError(t, err)
				assert.False(t, existed)

				list, err := s.List(ctx)
				require.NoError(t, err)
				assert.Empty(t, list)
			})

			t.Run("list on empty store is empty", func(t *testing.T) {
				s := open(t)
				defer s.Close()

				list, err := s.List(ctx)
				require.NoError(t, err)
				assert.NotNil(t, list)
				assert.Empty(t, list)
			})

			t.Run("interleaved puts to distinct ids all persist", func(t *testing.T) {
				s := open(t)
				defer s.Close()

				const n = 40
				g, gctx := errgroup.WithContext(ctx)
				for i := 0; i < n; i++ {
					id := fmt.Sprintf("s-%02d", i)
					g.Go(func() error {
						if err := s.Put(gctx, id, testSession(id, int64(i))); err != nil {
							return err
						}
						sess, err := s.Get(gctx, id)
						if err != nil {
							return err
						}
						sess.Append(datatypes.RoleUser, "second write")
						return s.Put(gctx, id, sess)
					})
				}
				require.NoError(t, g.Wait())

				list, err := s.List(ctx)
				require.NoError(t, err)
				assert.Len(t, list, n)

				for i := 0; i < n; i++ {
					got, err := s.Get(ctx, fmt.Sprintf("s-%02d", i))
					require.NoError(t, err)
					assert.Len(t, got.Messages, 2)
				}
			})
		})
	}
}

// TestOpen_SelectsBackend verifies the factory honours Options.Backend.
func TestOpen_SelectsBackend(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		opts    Options
		want    interface{}
		wantErr bool
	}{
		{name: "default is document", opts: Options{Path: filepath.Join(dir, "d.json")}, want: &DocumentStore{}},
		{name: "badger in memory", opts: Options{Backend: BackendBadger, InMemory: true}, want: &BadgerStore{}},
		{name: "sqlite", opts: Options{Backend: BackendSQLite, Path: filepath.Join(dir, "s.db")}, want: &SQLiteStore{}},
		{name: "unknown", opts: Options{Backend: "etcd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer s.Close()

			inst, ok := s.(*Instrumented)
			require.True(t, ok)
			assert.IsType(t, tt.want, inst.Unwrap())
		})
	}
}

// TestInstrumented_RecordsMetrics verifies not-found is not a failure.
func TestInstrumented_RecordsMetrics(t *testing.T) {
	ctx := context.Background()
	m := observability.NewChatMetrics(prometheus.NewRegistry())
	inner, err := OpenBadgerStore(InMemoryBadgerConfig())
	require.NoError(t, err)
	s := NewInstrumented(inner, "badger", m)
	defer s.Close()

	require.NoError(t, s.Put(ctx, "a", testSession("T", 1)))
	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOperationsTotal.WithLabelValues("badger", "put", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOperationsTotal.WithLabelValues("badger", "get", "success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.StoreOperationsTotal.WithLabelValues("badger", "get", "error")))
}

// TestPersistentBackends_SurviveReopen verifies data outlives the process
// handle for every on-disk backend.
func TestPersistentBackends_SurviveReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, backend := range []Backend{BackendDocument, BackendBadger, BackendSQLite} {
		t.Run(string(backend), func(t *testing.T) {
			opts := Options{Backend: backend, Path: filepath.Join(dir, string(backend))}

			s, err := Open(opts)
			require.NoError(t, err)
			require.NoError(t, s.Put(ctx, "kept", testSession("Kept", 42)))
			require.NoError(t, s.Close())

			s, err = Open(opts)
			require.NoError(t, err)
			defer s.Close()

			got, err := s.Get(ctx, "kept")
			require.NoError(t, err)
			assert.Equal(t, "Kept", got.Title)
			assert.Equal(t, int64(42), got.CreatedAt)
		})
	}
}
