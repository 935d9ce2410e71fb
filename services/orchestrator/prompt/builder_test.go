// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package prompt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianChat/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/modes"
)

func transcriptOf(n int) []datatypes.Message {
	out := make([]datatypes.Message, n)
	for i := range out {
		role := datatypes.RoleUser
		if i%2 == 0 {
			role = datatypes.RoleAssistant
		}
		out[i] = datatypes.Message{Role: role, Content: fmt.Sprintf("m%02d", i)}
	}
	return out
}

func chatProfile(t *testing.T) modes.Profile {
	t.Helper()
	p, ok := modes.Lookup(datatypes.ModeChat)
	require.True(t, ok)
	return p
}

func TestBuild_TruncatesToWindow(t *testing.T) {
	transcript := transcriptOf(20)

	got := Build(chatProfile(t), "", transcript, 12)

	require.Len(t, got, 13)
	assert.Equal(t, datatypes.RoleSystem, got[0].Role)
	assert.Equal(t, transcript[8:], got[1:])

	systemCount := 0
	for _, m := range got {
		if m.Role == datatypes.RoleSystem {
			systemCount++
		}
	}
	assert.Equal(t, 1, systemCount)
}

func TestBuild_ShortTranscriptIncludedWhole(t *testing.T) {
	transcript := transcriptOf(3)

	got := Build(chatProfile(t), "", transcript, DefaultWindow)

	require.Len(t, got, 4)
	assert.Equal(t, transcript, got[1:])
}

func TestBuild_ExactlyWindow(t *testing.T) {
	transcript := transcriptOf(DefaultWindow)

	got := Build(chatProfile(t), "", transcript, DefaultWindow)

	assert.Len(t, got, DefaultWindow+1)
	assert.Equal(t, "m00", got[1].Content)
}

func TestBuild_NonPositiveWindowUsesDefault(t *testing.T) {
	got := Build(chatProfile(t), "", transcriptOf(20), 0)
	assert.Len(t, got, DefaultWindow+1)
}

func TestBuild_InstructionEmbedsPreambleAndMemory(t *testing.T) {
	p := chatProfile(t)

	withMemory := Build(p, "user likes cats", nil, DefaultWindow)
	require.Len(t, withMemory, 1)
	assert.True(t, strings.HasPrefix(withMemory[0].Content, p.Preamble))
	assert.True(t, strings.HasSuffix(withMemory[0].Content, "Session memory: user likes cats"))

	empty := Build(p, "   ", nil, DefaultWindow)
	assert.True(t, strings.HasSuffix(empty[0].Content, "Session memory: None"))
}

func TestBuild_DoesNotAliasOrMutateTranscript(t *testing.T) {
	transcript := transcriptOf(20)
	snapshot := append([]datatypes.Message(nil), transcript...)

	got := Build(chatProfile(t), "", transcript, 12)
	got[1].Content = "changed"
	_ = append(got, datatypes.Message{Role: datatypes.RoleUser, Content: "extra"})

	assert.Equal(t, snapshot, transcript)
}
