// Package events publishes session lifecycle events after the unit of work
// that produced them has committed.
package events

import (
	"context"
	"time"
)

type Type string

const (
	SessionCreated   Type = "session.created"
	SessionJoined    Type = "session.joined"
	TossCompleted    Type = "session.toss_completed"
	PlayerPicked     Type = "session.player_picked"
	StakePlaced      Type = "session.stake_placed"
	SessionSettled   Type = "session.settled"
	SessionCancelled Type = "session.cancelled"
)

type Event struct {
	Type       Type      `json:"type"`
	SessionID  int64     `json:"session_id"`
	UserID     int64     `json:"user_id,omitempty"`
	Payload    any       `json:"payload,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

func (Nop) Close() error { return nil }
