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
	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants for Request Limits
// =============================================================================

const (
	// MaxMessageContentBytes is the maximum size of a single user message.
	MaxMessageContentBytes = 32 * 1024 // 32KB

	// MaxTitleLength is the maximum length of a session title.
	MaxTitleLength = 200
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for chat datatypes.
// Initialized in init() with custom validators.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()

	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
	_ = chatValidate.RegisterValidation("mode", validateMode)
}

// validateMaxBytes validates that a string field does not exceed MaxMessageContentBytes.
//
// # Description
//
// Checks byte length (not rune count) so a large multi-byte payload cannot
// slip under the limit.
//
// # Inputs
//
//   - fl: Validator field level containing the string to validate
//
// # Outputs
//
//   - bool: true if content <= 32KB, false otherwise
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// validateMode accepts an empty string (clear) or a known ModeID.
func validateMode(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, ok := ParseModeID(s)
	return ok
}

// =============================================================================
// Turn Request Types
// =============================================================================

// ChatRequest is the body of POST /api/chat.
//
// # Description
//
// ChatRequest submits one user message to an existing session. Both fields
// are required; a missing field is a request-validation error (400).
//
// # Fields
//
//   - ChatID: Required. Session identifier returned by POST /api/new-chat.
//   - Message: Required. User text, at most 32KB.
//
// # Examples
//
//	{"chatId": "4a0c7d0e-6f0b-4a47-9d3c-21c1d5a1f0aa", "message": "define entropy"}
type ChatRequest struct {
	ChatID  string `json:"chatId" validate:"required"`
	Message string `json:"message" validate:"required,maxbytes"`
}

// Validate validates the ChatRequest fields.
func (r *ChatRequest) Validate() error {
	return chatValidate.Struct(r)
}

// ChatResponse is the body returned by POST /api/chat.
type ChatResponse struct {
	Reply    string `json:"reply"`
	ModeUsed ModeID `json:"modeUsed"`
}

// NewChatResponse is the body returned by POST /api/new-chat.
type NewChatResponse struct {
	ChatID string `json:"chatId"`
}

// DeleteChatResponse is the body returned by DELETE /api/chat/:id.
type DeleteChatResponse struct {
	Success bool `json:"success"`
}

// =============================================================================
// Administrative Request Types
// =============================================================================

// RenameRequest is the body of PUT /api/chat/:id/title.
type RenameRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

// Validate validates the RenameRequest fields.
func (r *RenameRequest) Validate() error {
	return chatValidate.Struct(r)
}

// ForcedModeRequest is the body of PUT /api/chat/:id/mode.
//
// An empty Mode clears the override and re-enables automatic detection.
type ForcedModeRequest struct {
	Mode string `json:"mode" validate:"mode"`
}

// Validate validates the ForcedModeRequest fields.
func (r *ForcedModeRequest) Validate() error {
	return chatValidate.Struct(r)
}

// ModeInfo describes one response profile for GET /api/modes.
type ModeInfo struct {
	ID          ModeID  `json:"id"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
}

// =============================================================================
// Websocket Types
// =============================================================================

// WSTurnRequest is one frame sent by a websocket client.
type WSTurnRequest struct {
	Message string `json:"message"`
}

// WSTurnResponse is one frame sent back for every WSTurnRequest.
type WSTurnResponse struct {
	Reply    string `json:"reply,omitempty"`
	ModeUsed ModeID `json:"modeUsed,omitempty"`
	Error    string `json:"error,omitempty"`
}
