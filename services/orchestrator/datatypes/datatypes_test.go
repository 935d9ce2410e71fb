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
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Session Tests
// =============================================================================

func TestNewSession_SeedShape(t *testing.T) {
	s := NewSession(1700000000000)

	assert.Equal(t, DefaultTitle, s.Title)
	assert.Equal(t, int64(1700000000000), s.CreatedAt)
	require.Len(t, s.Messages, 1)
	assert.Equal(t, RoleAssistant, s.Messages[0].Role)
	assert.Equal(t, GreetingMessage, s.Messages[0].Content)
	assert.Empty(t, s.Memory)
	assert.Nil(t, s.ForcedMode)
}

func TestSession_CloneIsDeep(t *testing.T) {
	mode := ModeExam
	orig := NewSession(1)
	orig.ForcedMode = &mode

	c := orig.Clone()
	c.Append(RoleUser, "hi")
	c.Messages[0].Content = "changed"
	*c.ForcedMode = ModeChat

	assert.Len(t, orig.Messages, 1)
	assert.Equal(t, GreetingMessage, orig.Messages[0].Content)
	assert.Equal(t, ModeExam, *orig.ForcedMode)

	var nilSession *Session
	assert.Nil(t, nilSession.Clone())
}

func TestSession_Summary(t *testing.T) {
	s := NewSession(42)
	s.Title = "Physics"
	assert.Equal(t, SessionSummary{ChatID: "abc", Title: "Physics", CreatedAt: 42}, s.Summary("abc"))
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAssistant.Valid())
	assert.False(t, Role("robot").Valid())
}

// =============================================================================
// Mode Tests
// =============================================================================

func TestParseModeID(t *testing.T) {
	tests := []struct {
		in   string
		want ModeID
		ok   bool
	}{
		{"exam", ModeExam, true},
		{"  Technical ", ModeTechnical, true},
		{"CONCISE", ModeConcise, true},
		{"chat", ModeChat, true},
		{"poetry", ModeID("poetry"), false},
		{"", ModeID(""), false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseModeID(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// =============================================================================
// Request Validation Tests
// =============================================================================

func TestChatRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     ChatRequest
		wantErr bool
	}{
		{"valid", ChatRequest{ChatID: "id", Message: "hello"}, false},
		{"missing chat id", ChatRequest{Message: "hello"}, true},
		{"missing message", ChatRequest{ChatID: "id"}, true},
		{"exactly max bytes", ChatRequest{ChatID: "id", Message: strings.Repeat("a", MaxMessageContentBytes)}, false},
		{"over max bytes", ChatRequest{ChatID: "id", Message: strings.Repeat("a", MaxMessageContentBytes+1)}, true},
		// 3 bytes per rune: under the limit in runes, over it in bytes.
		{"multibyte over max", ChatRequest{ChatID: "id", Message: strings.Repeat("€", MaxMessageContentBytes/2)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRenameRequest_Validate(t *testing.T) {
	assert.NoError(t, (&RenameRequest{Title: "Physics"}).Validate())
	assert.Error(t, (&RenameRequest{}).Validate())
	assert.Error(t, (&RenameRequest{Title: strings.Repeat("t", MaxTitleLength+1)}).Validate())
}

func TestForcedModeRequest_Validate(t *testing.T) {
	assert.NoError(t, (&ForcedModeRequest{Mode: ""}).Validate(), "empty clears the override")
	assert.NoError(t, (&ForcedModeRequest{Mode: "exam"}).Validate())
	assert.NoError(t, (&ForcedModeRequest{Mode: "Exam"}).Validate())
	assert.Error(t, (&ForcedModeRequest{Mode: "poetry"}).Validate())
}

// =============================================================================
// Error Tests
// =============================================================================

func TestStorageError(t *testing.T) {
	cause := fs.ErrPermission
	err := fmt.Errorf("commit: %w", &StorageError{Op: "write", Path: "/data/sessions.json", Err: cause})

	assert.True(t, errors.Is(err, ErrStorage))
	assert.True(t, errors.Is(err, fs.ErrPermission))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "storage write /data/sessions.json")

	var se *StorageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "write", se.Op)

	noPath := &StorageError{Op: "list", Err: cause}
	assert.Equal(t, "storage list: "+cause.Error(), noPath.Error())
}
