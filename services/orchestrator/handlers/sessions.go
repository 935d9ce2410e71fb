// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"net/http"

	"github.com/AleutianAI/AleutianChat/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/modes"
	"github.com/gin-gonic/gin"
)

// SessionService is the session lifecycle surface used by the handlers.
//
// *sessions.Manager satisfies it.
type SessionService interface {
	Create(ctx context.Context) (string, error)
	Get(ctx context.Context, id string) (*datatypes.Session, error)
	Remove(ctx context.Context, id string) (bool, error)
	ListSummaries(ctx context.Context) ([]datatypes.SessionSummary, error)
	Rename(ctx context.Context, id, title string) error
	SetForcedMode(ctx context.Context, id string, mode *datatypes.ModeID) error
}

// ListChats handles GET /api/chats.
//
// Responds with every session summary, most recently created first. An
// empty store yields [] rather than null.
func ListChats(svc SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.ListSummaries(c.Request.Context())
		if err != nil {
			respondError(c, "list_chats", err)
			return
		}
		if list == nil {
			list = []datatypes.SessionSummary{}
		}
		c.JSON(http.StatusOK, list)
	}
}

// GetChat handles GET /api/chat/:id and returns the full session.
func GetChat(svc SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, "get_chat", err)
			return
		}
		c.JSON(http.StatusOK, sess)
	}
}

// DeleteChat handles DELETE /api/chat/:id.
//
// # Outputs
//
//   - 200 {"success": true} when the session existed.
//   - 404 when it did not. Repeating a delete is therefore a 404.
func DeleteChat(svc SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		existed, err := svc.Remove(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, "delete_chat", err)
			return
		}
		if !existed {
			respondError(c, "delete_chat", datatypes.ErrNotFound)
			return
		}
		c.JSON(http.StatusOK, datatypes.DeleteChatResponse{Success: true})
	}
}

// NewChat handles POST /api/new-chat and returns {"chatId": "..."}.
func NewChat(svc SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := svc.Create(c.Request.Context())
		if err != nil {
			respondError(c, "new_chat", err)
			return
		}
		c.JSON(http.StatusOK, datatypes.NewChatResponse{ChatID: id})
	}
}

// RenameChat handles PUT /api/chat/:id/title.
func RenameChat(svc SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindJSON[datatypes.RenameRequest](c)
		if !ok {
			return
		}
		id := c.Param("id")
		if err := svc.Rename(c.Request.Context(), id, req.Title); err != nil {
			respondError(c, "rename_chat", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// SetChatMode handles PUT /api/chat/:id/mode.
//
// {"mode": "exam"} pins the session to a profile; {"mode": ""} clears the
// override and restores automatic detection.
func SetChatMode(svc SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindJSON[datatypes.ForcedModeRequest](c)
		if !ok {
			return
		}

		var forced *datatypes.ModeID
		if req.Mode != "" {
			// The validator already accepted the name.
			m, _ := datatypes.ParseModeID(req.Mode)
			forced = &m
		}
		if err := svc.SetForcedMode(c.Request.Context(), c.Param("id"), forced); err != nil {
			respondError(c, "set_chat_mode", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "forcedMode": forced})
	}
}

// ListModes handles GET /api/modes.
func ListModes() gin.HandlerFunc {
	all := modes.All()
	infos := make([]datatypes.ModeInfo, 0, len(all))
	for _, p := range all {
		infos = append(infos, p.Info())
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, infos)
	}
}
