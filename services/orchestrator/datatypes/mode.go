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

import "strings"

// ModeID names a response profile. The set is closed; use ParseModeID to
// turn untrusted input into a ModeID.
type ModeID string

const (
	ModeChat      ModeID = "chat"
	ModeTechnical ModeID = "technical"
	ModeConcise   ModeID = "concise"
	ModeExam      ModeID = "exam"
)

// AllModes lists every known mode in classification priority order, with the
// default last.
var AllModes = []ModeID{ModeTechnical, ModeConcise, ModeExam, ModeChat}

// Valid reports whether m is a known mode.
func (m ModeID) Valid() bool {
	switch m {
	case ModeChat, ModeTechnical, ModeConcise, ModeExam:
		return true
	default:
		return false
	}
}

// ParseModeID normalises s and reports whether it names a known mode.
func ParseModeID(s string) (ModeID, bool) {
	m := ModeID(strings.ToLower(strings.TrimSpace(s)))
	return m, m.Valid()
}
