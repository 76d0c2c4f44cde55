// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

// Package providers defines the inference client contract and the
// model failover chain. The substrate consumes inference, it does not
// implement it: model ids are opaque strings and transports live
// behind the ChatClient interface.
package providers

import (
	"context"
)

// Message is one turn of an inference conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token consumption for one call.
type Usage struct {
	TotalTokens int `json:"total_tokens"`
}

// ChatOptions tunes a single chat call. The zero value lets the client
// pick its defaults.
type ChatOptions struct {
	Model     string `json:"model,omitempty"`
	Reasoning bool   `json:"reasoning,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// ChatResponse is the result of one chat call.
type ChatResponse struct {
	Message Message `json:"message"`
	Usage   Usage   `json:"usage"`
	Model   string  `json:"model"`
}

// ChatClient is the inference transport consumed by the substrate.
// Calls may suspend; failures propagate as retriable errors unless the
// transport signals otherwise.
type ChatClient interface {
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (*ChatResponse, error)
}

// ModelInfo describes one registered model for failover selection.
type ModelInfo struct {
	ID            string `json:"id"`
	Provider      string `json:"provider"`
	Quality       string `json:"quality"` // high, medium, low
	ContextLength int    `json:"context_length"`
	Priority      int    `json:"priority"` // lower tries first
}
