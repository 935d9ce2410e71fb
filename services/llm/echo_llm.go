// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"

	"github.com/AleutianAI/AleutianChat/services/orchestrator/datatypes"
)

// EchoClient is an offline generator that repeats the last user message.
// It lets the service run end to end without a model server.
type EchoClient struct{}

func NewEchoClient() *EchoClient { return &EchoClient{} }

// Chat implements the ChatClient interface
func (EchoClient) Chat(ctx context.Context, messages []datatypes.Message, _ GenerationParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == datatypes.RoleUser {
			return "You said: " + messages[i].Content, nil
		}
	}
	return "You said nothing.", nil
}
