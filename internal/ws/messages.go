// Package ws holds the WebSocket hub that pushes auction activity to
// connected clients.  messages.go defines the wire format.
package ws

import (
	"time"
)

// Envelope is the single wire format for every pushed message.  Type matches
// the event-type constants in the events package so clients can switch on it.
type Envelope struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// ErrorMessage is sent directly to one client (not broadcast).
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
