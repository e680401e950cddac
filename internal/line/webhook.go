// Package line is a minimal client for the LINE Messaging API: webhook
// verification and decoding, and the reply and push endpoints.
package line

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const (
	SignatureHeader = "X-Line-Signature"
	maxBodyBytes    = 1 << 20
)

var (
	// ErrInvalidSignature is returned when the webhook body does not match
	// its X-Line-Signature header.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedEvent is returned for a webhook body that cannot be
	// decoded.
	ErrMalformedEvent = errors.New("malformed webhook event")
)

type EventType string

const (
	EventMessage EventType = "message"
	EventFollow  EventType = "follow"
)

// Event is an inbound event the game handles: a text message or a follow.
type Event struct {
	Type       EventType
	UserID     string
	ReplyToken string
	Text       string
	WebhookID  string
	Timestamp  int64
	Redelivery bool
}

type webhookBody struct {
	Destination string         `json:"destination"`
	Events      []webhookEvent `json:"events"`
}

type webhookEvent struct {
	Type            string `json:"type"`
	ReplyToken      string `json:"replyToken"`
	Timestamp       int64  `json:"timestamp"`
	WebhookEventID  string `json:"webhookEventId"`
	DeliveryContext struct {
		IsRedelivery bool `json:"isRedelivery"`
	} `json:"deliveryContext"`
	Source struct {
		Type   string `json:"type"`
		UserID string `json:"userId"`
	} `json:"source"`
	Message *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"message"`
}

// Sign returns the base64 HMAC-SHA256 of body under secret, as LINE sends
// it in X-Line-Signature.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature is valid for body.
func VerifySignature(secret string, body []byte, signature string) bool {
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// ParseRequest verifies and decodes a webhook request. Only text messages
// and follow events from users are returned; other events, and events
// without a user id, are skipped.
func ParseRequest(secret string, r *http.Request) ([]Event, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrMalformedEvent, err)
	}
	if !VerifySignature(secret, body, r.Header.Get(SignatureHeader)) {
		return nil, ErrInvalidSignature
	}
	return ParseBody(body)
}

// ParseBody decodes an already verified webhook body.
func ParseBody(body []byte) ([]Event, error) {
	var wb webhookBody
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&wb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	events := make([]Event, 0, len(wb.Events))
	for _, we := range wb.Events {
		if we.Source.UserID == "" {
			continue
		}
		ev := Event{
			UserID:     we.Source.UserID,
			ReplyToken: we.ReplyToken,
			WebhookID:  we.WebhookEventID,
			Timestamp:  we.Timestamp,
			Redelivery: we.DeliveryContext.IsRedelivery,
		}
		switch we.Type {
		case string(EventMessage):
			if we.Message == nil || we.Message.Type != "text" {
				continue
			}
			ev.Type = EventMessage
			ev.Text = we.Message.Text
		case string(EventFollow):
			ev.Type = EventFollow
		default:
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
