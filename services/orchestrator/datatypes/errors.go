// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Taxonomy
// =============================================================================

var (
	// ErrInvalidRequest marks a request missing required fields (4xx).
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotFound marks an unknown session id (404).
	ErrNotFound = errors.New("session not found")

	// ErrStorage marks an I/O failure reading or writing persisted sessions
	// (5xx). Never swallowed: it implies a risk of data loss.
	ErrStorage = errors.New("storage failure")
)

// StorageError describes a failed store operation.
//
// # Description
//
// StorageError carries the operation and backing location so that logs
// point at the exact document, database or key that failed. It matches
// ErrStorage under errors.Is and unwraps to the underlying cause.
//
// # Examples
//
//	if errors.Is(err, datatypes.ErrStorage) {
//	    c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
//	}
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrStorage) match any StorageError.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
