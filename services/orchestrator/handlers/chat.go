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
	"github.com/AleutianAI/AleutianChat/services/orchestrator/turn"
	"github.com/gin-gonic/gin"
)

// TurnHandler runs one conversational turn. *turn.Orchestrator satisfies it.
type TurnHandler interface {
	HandleTurn(ctx context.Context, sessionID, userText string) (*turn.Result, error)
}

// PostChat handles POST /api/chat.
//
// # Description
//
// Validates {chatId, message}, runs the turn and responds with
// {reply, modeUsed}. Generator failures never surface here: the turn
// absorbs them into the fallback reply, so the only error statuses are
// 400 for a bad body, 404 for an unknown chat and 500 for storage.
//
// # Examples
//
//	POST /api/chat {"chatId": "4a0c...", "message": "define entropy"}
//	200 {"reply": "...", "modeUsed": "exam"}
func PostChat(turns TurnHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindJSON[datatypes.ChatRequest](c)
		if !ok {
			return
		}

		res, err := turns.HandleTurn(c.Request.Context(), req.ChatID, req.Message)
		if err != nil {
			respondError(c, "chat", err)
			return
		}
		c.JSON(http.StatusOK, datatypes.ChatResponse{Reply: res.Reply, ModeUsed: res.ModeUsed})
	}
}
