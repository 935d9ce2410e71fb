// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package prompt assembles the bounded message list sent to the generator.
package prompt

import (
	"strings"

	"github.com/AleutianAI/AleutianChat/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/modes"
)

// DefaultWindow is the number of most recent transcript messages included.
const DefaultWindow = 12

// noMemory is embedded in the instruction when the session memory is blank.
const noMemory = "None"

// Build returns the generator context for one turn.
//
// # Description
//
// The result starts with exactly one system message holding the profile
// preamble and the session memory, followed by the last window messages of
// transcript in their original order. Older messages are omitted from the
// context only; the caller's transcript is never modified.
//
// # Inputs
//
//   - p: Resolved mode profile.
//   - memory: Current session memory; blank renders as "None".
//   - transcript: Full chronological transcript.
//   - window: Recency window. Values <= 0 use DefaultWindow.
//
// # Outputs
//
//   - []datatypes.Message: Fresh slice, never aliasing transcript.
func Build(p modes.Profile, memory string, transcript []datatypes.Message, window int) []datatypes.Message {
	if window <= 0 {
		window = DefaultWindow
	}

	recent := transcript
	if len(recent) > window {
		recent = recent[len(recent)-window:]
	}

	out := make([]datatypes.Message, 0, len(recent)+1)
	out = append(out, datatypes.Message{
		Role:    datatypes.RoleSystem,
		Content: Instruction(p, memory),
	})
	return append(out, recent...)
}

// Instruction renders the leading system message content.
func Instruction(p modes.Profile, memory string) string {
	if strings.TrimSpace(memory) == "" {
		memory = noMemory
	}
	return p.Preamble + "\n\nSession memory: " + memory
}
