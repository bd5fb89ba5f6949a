// Package events defines the fire-and-forget notification sink used to fan
// out auction activity.  Emission never blocks or fails a business operation:
// core state is committed first, then events go out best-effort.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event types published by the engine.
const (
	TypeAuctionOpened    = "auction_opened"
	TypeNewHighestBid    = "new_highest_bid"
	TypeOutbid           = "outbid"
	TypeAuctionClosing   = "auction_closing"
	TypeAuctionSettled   = "auction_settled"
	TypeAuctionCancelled = "auction_cancelled"
	TypeSettlementFailed = "settlement_failed"
	TypeListingCreated   = "listing_created"
	TypeListingSold      = "listing_sold"
	TypeListingCancelled = "listing_cancelled"
)

// Sink receives auction events.  Implementations must be non-blocking and
// must never return delivery status to the caller; a lost event is acceptable,
// a stalled bid is not.
type Sink interface {
	// Emit publishes an event to all listeners.
	Emit(eventType string, payload interface{})
	// EmitTo publishes an event addressed to a single user (e.g. an outbid
	// notice).  Sinks without per-user routing fall back to Emit.
	EmitTo(userID string, eventType string, payload interface{})
}

// ──────────────────────────────────────────────────────────────────────────────
// NopSink
// ──────────────────────────────────────────────────────────────────────────────

// NopSink discards all events.  Used in tests and when no sink is configured.
type NopSink struct{}

func (NopSink) Emit(string, interface{})           {}
func (NopSink) EmitTo(string, string, interface{}) {}

// ──────────────────────────────────────────────────────────────────────────────
// MultiSink
// ──────────────────────────────────────────────────────────────────────────────

// MultiSink fans an event out to several sinks (e.g. websocket hub + Redis).
type MultiSink []Sink

func (m MultiSink) Emit(eventType string, payload interface{}) {
	for _, s := range m {
		s.Emit(eventType, payload)
	}
}

func (m MultiSink) EmitTo(userID, eventType string, payload interface{}) {
	for _, s := range m {
		s.EmitTo(userID, eventType, payload)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// RedisSink
// ──────────────────────────────────────────────────────────────────────────────

// envelope is the wire format published to Redis.
type envelope struct {
	Type    string      `json:"type"`
	UserID  string      `json:"user_id,omitempty"`
	Payload interface{} `json:"payload"`
	At      time.Time   `json:"at"`
}

// RedisSink publishes events to a Redis channel for external consumers
// (email workers, analytics).  Publishing happens on a goroutine with its own
// timeout so a slow Redis never backs up into the bid path.
type RedisSink struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisSink creates a sink publishing to the given channel.
func NewRedisSink(client *redis.Client, channel string, logger *slog.Logger) *RedisSink {
	return &RedisSink{client: client, channel: channel, logger: logger}
}

func (s *RedisSink) Emit(eventType string, payload interface{}) {
	s.publish(envelope{Type: eventType, Payload: payload, At: time.Now().UTC()})
}

func (s *RedisSink) EmitTo(userID, eventType string, payload interface{}) {
	s.publish(envelope{Type: eventType, UserID: userID, Payload: payload, At: time.Now().UTC()})
}

func (s *RedisSink) publish(e envelope) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("redis sink panic", "recover", r)
			}
		}()

		body, err := json.Marshal(e)
		if err != nil {
			s.logger.Error("redis sink marshal failed", "type", e.Type, "error", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := s.client.Publish(ctx, s.channel, body).Err(); err != nil {
			s.logger.Warn("redis sink publish failed", "type", e.Type, "error", err)
		}
	}()
}
