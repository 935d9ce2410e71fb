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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/AleutianAI/AleutianChat/services/orchestrator/datatypes"
)

// DocumentStore keeps every session in a single JSON document.
//
// # Description
//
// The document is a JSON object mapping session id to Session. Each
// operation reads the whole document, mutates it in memory and, for Put and
// Delete, writes the whole document back through a temp file and rename.
// A missing document is created as "{}" on first access.
//
// # Limitations
//
//   - Every Put and Delete rewrites the entire file. Cost grows with the
//     total number of sessions, not the size of the change.
//
// # Thread Safety
//
// All operations, reads included, hold one mutex for the full
// read-modify-write. Two concurrent Puts to different ids therefore both
// survive. The store is not safe against a second process writing the same
// file.
type DocumentStore struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewDocumentStore returns a store backed by the JSON file at path.
//
// The parent directory is created if missing. The file itself is created
// lazily on first access.
func NewDocumentStore(path string, logger *slog.Logger) (*DocumentStore, error) {
	if path == "" {
		return nil, errors.New("document store path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, &datatypes.StorageError{Op: "mkdir", Path: filepath.Dir(path), Err: err}
	}
	return &DocumentStore{path: path, logger: logger}, nil
}

// Path returns the backing file path.
func (s *DocumentStore) Path() string { return s.path }

// Get implements Store.
func (s *DocumentStore) Get(ctx context.Context, id string) (*datatypes.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	sess, ok := doc[id]
	if !ok || sess == nil {
		return nil, ErrNotFound
	}
	// doc is freshly decoded and discarded, so the value is already owned.
	return sess, nil
}

// Put implements Store.
func (s *DocumentStore) Put(ctx context.Context, id string, sess *datatypes.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("put %s: nil session", id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	doc[id] = sess
	return s.save(doc)
}

// Delete implements Store.
func (s *DocumentStore) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return false, err
	}
	if _, ok := doc[id]; !ok {
		return false, nil
	}
	delete(doc, id)
	if err := s.save(doc); err != nil {
		return false, err
	}
	return true, nil
}

// List implements Store.
func (s *DocumentStore) List(ctx context.Context) ([]datatypes.SessionSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]datatypes.SessionSummary, 0, len(doc))
	for id, sess := range doc {
		if sess == nil {
			continue
		}
		out = append(out, sess.Summary(id))
	}
	return out, nil
}

// Close implements Store. The document store holds no open handles.
func (s *DocumentStore) Close() error { return nil }

// load reads and decodes the document. Caller holds s.mu.
func (s *DocumentStore) load() (map[string]*datatypes.Session, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		doc := make(map[string]*datatypes.Session)
		if err := s.save(doc); err != nil {
			return nil, err
		}
		s.logger.Info("initialized empty session document", "path", s.path)
		return doc, nil
	}
	if err != nil {
		return nil, &datatypes.StorageError{Op: "read", Path: s.path, Err: err}
	}

	doc := make(map[string]*datatypes.Session)
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &datatypes.StorageError{Op: "decode", Path: s.path, Err: err}
	}
	return doc, nil
}

// save writes doc atomically. Caller holds s.mu.
func (s *DocumentStore) save(doc map[string]*datatypes.Session) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &datatypes.StorageError{Op: "encode", Path: s.path, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return &datatypes.StorageError{Op: "write", Path: s.path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &datatypes.StorageError{Op: "write", Path: tmpName, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &datatypes.StorageError{Op: "sync", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &datatypes.StorageError{Op: "close", Path: tmpName, Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return &datatypes.StorageError{Op: "rename", Path: s.path, Err: err}
	}
	return nil
}
