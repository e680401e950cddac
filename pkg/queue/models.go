package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the type of event in the queue
type EventType string

const (
	// EventTypeMessage is a text message from a player
	EventTypeMessage EventType = "message"

	// EventTypeFollow is a player adding the account as a friend
	EventTypeFollow EventType = "follow"
)

// Event is one inbound player event waiting to be applied.
type Event struct {
	EventID string    `json:"event_id"`
	Type    EventType `json:"type"`
	UserID  string    `json:"user_id"`

	// Message-specific fields
	Text string `json:"text,omitempty"`

	// ReplyToken is valid for a short time after the webhook call; the
	// worker falls back to a push message once it has expired.
	ReplyToken string `json:"reply_token,omitempty"`
	WebhookID  string `json:"webhook_id,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
	// Requeues counts how often a stopping worker returned the event to
	// the queue.
	Requeues int `json:"requeues,omitempty"`
}

// NewEvent returns an event with a fresh id.
func NewEvent(t EventType, userID string) *Event {
	return &Event{
		EventID:    uuid.New().String(),
		Type:       t,
		UserID:     userID,
		EnqueuedAt: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes for Redis
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an event from JSON bytes
func FromJSON(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
