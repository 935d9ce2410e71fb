// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianChat/services/orchestrator/datatypes"
)

// writeTestConfig points the CLI at a fresh document store with the echo
// generator.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	for _, key := range []string{"LLM_BACKEND_TYPE", "LLM_MODEL", "LLM_BASE_URL", "STORE_BACKEND", "STORE_PATH", "LOG_DIR", "LOG_LEVEL", "LOG_FORMAT", "ORCHESTRATOR_CONFIG"} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "orchestrator.yaml")
	body := "llm:\n  backend: echo\nstore:\n  backend: document\n  path: " +
		filepath.Join(dir, "sessions.json") + "\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

// run executes the CLI and returns stdout.
func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_SessionLifecycle(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := run(t, cfg, "sessions", "new")
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.NotEmpty(t, id)

	out, err = run(t, cfg, "--json", "sessions", "list")
	require.NoError(t, err)
	var list []datatypes.SessionSummary
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ChatID)

	_, err = run(t, cfg, "sessions", "rename", id, "Physics")
	require.NoError(t, err)
	_, err = run(t, cfg, "sessions", "mode", id, "exam")
	require.NoError(t, err)

	out, err = run(t, cfg, "turn", id, "hello there")
	require.NoError(t, err)
	assert.Equal(t, "[exam] You said: hello there\n", out)

	out, err = run(t, cfg, "sessions", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Title:   Physics")
	assert.Contains(t, out, "Mode:    exam (forced)")
	assert.Contains(t, out, "[user] hello there")

	_, err = run(t, cfg, "sessions", "mode", id)
	require.NoError(t, err)
	out, err = run(t, cfg, "--json", "turn", id, "short answer")
	require.NoError(t, err)
	var resp datatypes.ChatResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, datatypes.ModeConcise, resp.ModeUsed)

	_, err = run(t, cfg, "sessions", "delete", id)
	require.NoError(t, err)
	_, err = run(t, cfg, "sessions", "delete", id)
	assert.ErrorIs(t, err, datatypes.ErrNotFound)
}

func TestCLI_TurnUsesConfiguredGenerator(t *testing.T) {
	cfg := writeTestConfig(t)

	models := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		models <- req.Model
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"from ollama"},"done":true}`))
	}))
	defer srv.Close()

	dir := filepath.Dir(cfg)
	body := "llm:\n  backend: ollama\n  model: tutor-model\n  base_url: " + srv.URL +
		"\nstore:\n  backend: document\n  path: " + filepath.Join(dir, "sessions.json") +
		"\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0600))

	out, err := run(t, cfg, "sessions", "new")
	require.NoError(t, err)
	id := strings.TrimSpace(out)

	out, err = run(t, cfg, "turn", id, "hello")
	require.NoError(t, err)
	assert.Equal(t, "[chat] from ollama\n", out)
	assert.Equal(t, "tutor-model", <-models)
}

func TestCLI_Errors(t *testing.T) {
	cfg := writeTestConfig(t)

	_, err := run(t, cfg, "sessions", "show", "missing")
	assert.ErrorIs(t, err, datatypes.ErrNotFound)

	_, err = run(t, cfg, "sessions", "mode", "x", "poetry")
	assert.ErrorIs(t, err, datatypes.ErrInvalidRequest)

	_, err = run(t, cfg, "turn", "missing", "hi")
	assert.ErrorIs(t, err, datatypes.ErrNotFound)

	_, err = run(t, filepath.Join(t.TempDir(), "absent.yaml"), "sessions", "list")
	assert.Error(t, err)
}

func TestCLI_Modes(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := run(t, cfg, "modes")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[1], "technical"))
	assert.True(t, strings.HasPrefix(lines[4], "chat"))
}
