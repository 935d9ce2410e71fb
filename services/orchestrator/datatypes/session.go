// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the orchestrator service.
//
// This file contains the persisted session model: Session, Message and the
// summary projection returned by list endpoints.
package datatypes

// =============================================================================
// Session Constants
// =============================================================================

const (
	// DefaultTitle is the display title of a freshly created session.
	DefaultTitle = "New Chat"

	// GreetingMessage seeds every new session so the transcript is never empty.
	GreetingMessage = "Hello! I'm your assistant. How can I help you today?"

	// FallbackReply replaces the generated text whenever the generator call
	// fails or times out. The turn is still recorded with this content.
	FallbackReply = "Sorry, I'm having trouble responding right now. Please try again in a moment."
)

// =============================================================================
// Role
// =============================================================================

// Role identifies the author of a Message.
//
// Only RoleUser and RoleAssistant are ever persisted in a Session transcript.
// RoleSystem exists for the instruction message the context builder prepends
// before calling the generator.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// =============================================================================
// Message
// =============================================================================

// Message is a single role-tagged entry of a transcript.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// =============================================================================
// Session
// =============================================================================

// Session is the persisted state of one conversation.
//
// # Description
//
// Session is stored under an opaque identifier that is not part of the
// record itself; the store owns the id -> Session mapping. The record holds
// everything the turn orchestrator needs to build the next context window.
//
// # Fields
//
//   - Title: Display string. Defaults to DefaultTitle.
//   - CreatedAt: Creation time in milliseconds since epoch. Immutable.
//   - Messages: Chronological transcript. Append-only during normal turns,
//     never empty after creation.
//   - Memory: Condensed context carried between turns. Overwritten, never
//     appended, on each turn.
//   - ForcedMode: When non-nil, overrides automatic mode detection for
//     every turn until cleared.
//
// # Thread Safety
//
// Session values are not safe for concurrent mutation. Stores hand out owned
// copies (see Clone) so each caller mutates its own instance.
type Session struct {
	Title      string    `json:"title"`
	CreatedAt  int64     `json:"createdAt"`
	Messages   []Message `json:"messages"`
	Memory     string    `json:"memory"`
	ForcedMode *ModeID   `json:"forcedMode"`
}

// NewSession builds the seed session: default title, one assistant greeting,
// empty memory and no forced mode.
func NewSession(createdAtMs int64) *Session {
	return &Session{
		Title:     DefaultTitle,
		CreatedAt: createdAtMs,
		Messages: []Message{
			{Role: RoleAssistant, Content: GreetingMessage},
		},
	}
}

// Clone returns a deep copy of s. A nil receiver yields nil.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Messages != nil {
		out.Messages = make([]Message, len(s.Messages))
		copy(out.Messages, s.Messages)
	}
	if s.ForcedMode != nil {
		m := *s.ForcedMode
		out.ForcedMode = &m
	}
	return &out
}

// Append adds a message to the end of the transcript.
func (s *Session) Append(role Role, content string) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content})
}

// Summary projects s into the list representation under the given id.
func (s *Session) Summary(id string) SessionSummary {
	return SessionSummary{
		ChatID:    id,
		Title:     s.Title,
		CreatedAt: s.CreatedAt,
	}
}

// SessionSummary is the lightweight view returned by list operations.
type SessionSummary struct {
	ChatID    string `json:"chatId"`
	Title     string `json:"title"`
	CreatedAt int64  `json:"createdAt"`
}
