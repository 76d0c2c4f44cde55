// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

// Package sharedmem is the durable, subscribable key/value store that
// multi-agent conversations use for message passing and state sharing.
// A key accumulates versions; reads see the latest live entry.
package sharedmem

import "errors"

// Error taxonomy for store operations. Transient database errors are
// returned as-is and are retriable through pkg/retry.
var (
	// ErrNotFound is raised by Update and Delete on an absent id.
	ErrNotFound = errors.New("sharedmem: entry not found")

	// ErrConflict is reserved; no current operation raises it.
	ErrConflict = errors.New("sharedmem: conflict")
)

// Metadata is the schema-free bag attached to every entry. Consumers
// own the decoding of Value; the store never interprets it.
type Metadata struct {
	Tags     []string `json:"tags,omitempty"`
	Context  string   `json:"context,omitempty"`
	Priority int      `json:"priority,omitempty"`
}

// Entry is one stored version of a key.
type Entry struct {
	ID        string   `json:"id"`
	Key       string   `json:"key"`
	Value     any      `json:"value"`
	Metadata  Metadata `json:"metadata"`
	AgentID   string   `json:"agent_id,omitempty"`
	CreatedAt int64    `json:"created_at"`
	UpdatedAt int64    `json:"updated_at"`
	ExpiresAt int64    `json:"expires_at,omitempty"` // 0 means never
}

// QueryFilter narrows a Query. Zero-valued fields are ignored; provided
// fields must all match. Tags requires every listed tag to be present.
type QueryFilter struct {
	Context  string
	Tags     []string
	AgentID  string
	Limit    int
	OrderBy  string // "created_at" (default) or "updated_at"
	OrderDir string // "desc" (default) or "asc"
}

// ChangeType identifies what happened to a row on the change feed.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// Change is one change-feed notification.
type Change struct {
	Type  ChangeType `json:"event"`
	Entry Entry      `json:"row"`
}

// SubscriptionFilter narrows what a subscriber observes. Empty fields
// match everything.
type SubscriptionFilter struct {
	Key     string
	AgentID string
}
