// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package modes selects the response profile used for each turn.
package modes

import (
	"strings"

	"github.com/AleutianAI/AleutianChat/services/orchestrator/datatypes"
)

// Profile is an immutable bundle of generation parameters and instruction
// text. Profiles are returned by value.
type Profile struct {
	ID          datatypes.ModeID
	Temperature float32
	MaxTokens   int
	Preamble    string
}

// Info converts the profile to its wire representation.
func (p Profile) Info() datatypes.ModeInfo {
	return datatypes.ModeInfo{ID: p.ID, Temperature: p.Temperature, MaxTokens: p.MaxTokens}
}

var profiles = map[datatypes.ModeID]Profile{
	datatypes.ModeTechnical: {
		ID:          datatypes.ModeTechnical,
		Temperature: 0.2,
		MaxTokens:   1024,
		Preamble: "You are a precise senior software engineer. Give correct, complete answers. " +
			"Use code blocks for code and explain the reasoning behind fixes.",
	},
	datatypes.ModeConcise: {
		ID:          datatypes.ModeConcise,
		Temperature: 0.3,
		MaxTokens:   150,
		Preamble:    "Answer in at most three sentences. No preamble, no lists unless asked.",
	},
	datatypes.ModeExam: {
		ID:          datatypes.ModeExam,
		Temperature: 0.4,
		MaxTokens:   600,
		Preamble: "You are a patient tutor preparing a student for an exam. Start with a clear " +
			"definition, then give one worked example and a short recap.",
	},
	datatypes.ModeChat: {
		ID:          datatypes.ModeChat,
		Temperature: 0.7,
		MaxTokens:   512,
		Preamble:    "You are a friendly, helpful assistant. Keep a warm, conversational tone.",
	},
}

// technicalKeywords trigger the technical profile. Matching is a
// case-insensitive substring test, so "bug" also matches "debugging".
var technicalKeywords = []string{
	"code", "bug", "error", "algorithm", "function",
	"javascript", "typescript", "python", "java", "golang", "rust",
	"react", "node", "html", "css", "api",
	"database", "sql",
}

// Lookup returns the profile for id.
func Lookup(id datatypes.ModeID) (Profile, bool) {
	p, ok := profiles[id]
	return p, ok
}

// All returns every profile in classification priority order.
func All() []Profile {
	out := make([]Profile, 0, len(datatypes.AllModes))
	for _, id := range datatypes.AllModes {
		out = append(out, profiles[id])
	}
	return out
}

// Classify chooses the profile for a message.
//
// # Description
//
// A forced mode that resolves to a known profile wins without looking at the
// message. Otherwise the lower-cased message is tested against each rule in
// priority order and the first rule that matches wins:
//
//  1. technical: any technical keyword
//  2. concise: "short answer"
//  3. exam: "exam" or "define"
//  4. chat: default
//
// Classify is pure: equal inputs always give equal outputs.
//
// # Examples
//
//	Classify("please fix this bug in my function", nil).ID // technical
//	Classify("define entropy", nil).ID                     // exam
func Classify(message string, forced *datatypes.ModeID) Profile {
	if forced != nil {
		if p, ok := profiles[*forced]; ok {
			return p
		}
	}

	text := strings.ToLower(message)
	switch {
	case containsAny(text, technicalKeywords...):
		return profiles[datatypes.ModeTechnical]
	case strings.Contains(text, "short answer"):
		return profiles[datatypes.ModeConcise]
	case containsAny(text, "exam", "define"):
		return profiles[datatypes.ModeExam]
	default:
		return profiles[datatypes.ModeChat]
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
