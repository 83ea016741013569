package models

import (
	"encoding/json"
	"time"
)

// EventKind is the closed set of live update event kinds.
type EventKind string

const (
	EventOrderCreated EventKind = "order.created"
	EventOrderUpdated EventKind = "order.updated"
	EventOrderDeleted EventKind = "order.deleted"
	EventPing         EventKind = "ping"
)

// Valid reports whether k is one of the known event kinds.
func (k EventKind) Valid() bool {
	switch k {
	case EventOrderCreated, EventOrderUpdated, EventOrderDeleted, EventPing:
		return true
	}
	return false
}

// LiveUpdatePayload is an ephemeral fan-out message. It is never persisted;
// it exists only in memory and on the pub/sub wire between publish and
// delivery. Origin identifies the publishing process instance and is used to
// drop a process's own messages when they come back in over the transport.
type LiveUpdatePayload struct {
	TenantID  string          `json:"tenant_id"`
	Event     EventKind       `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Origin    string          `json:"origin,omitempty"`
}

type PublishEventRequest struct {
	Event EventKind       `json:"event" binding:"required"`
	Data  json.RawMessage `json:"data,omitempty"`
}
