package line

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "channel-secret"

func signedRequest(body, secret string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
	r.Header.Set(SignatureHeader, Sign(secret, []byte(body)))
	return r
}

const sampleBody = `{
  "destination": "Uxxxxxxxx",
  "events": [
    {
      "type": "message",
      "replyToken": "reply-1",
      "timestamp": 1700000000000,
      "webhookEventId": "01HABC",
      "deliveryContext": {"isRedelivery": false},
      "source": {"type": "user", "userId": "U111"},
      "message": {"type": "text", "id": "m1", "text": "START"}
    },
    {
      "type": "message",
      "replyToken": "reply-2",
      "source": {"type": "user", "userId": "U111"},
      "message": {"type": "sticker", "id": "m2"}
    },
    {
      "type": "follow",
      "replyToken": "reply-3",
      "deliveryContext": {"isRedelivery": true},
      "source": {"type": "user", "userId": "U222"}
    },
    {
      "type": "message",
      "replyToken": "reply-4",
      "source": {"type": "group", "groupId": "G1"},
      "message": {"type": "text", "id": "m4", "text": "no user"}
    },
    {
      "type": "unfollow",
      "source": {"type": "user", "userId": "U333"}
    }
  ]
}`

func TestParseRequest(t *testing.T) {
	events, err := ParseRequest(testSecret, signedRequest(sampleBody, testSecret))
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, Event{
		Type:       EventMessage,
		UserID:     "U111",
		ReplyToken: "reply-1",
		Text:       "START",
		WebhookID:  "01HABC",
		Timestamp:  1700000000000,
	}, events[0])

	assert.Equal(t, EventFollow, events[1].Type)
	assert.Equal(t, "U222", events[1].UserID)
	assert.Equal(t, "reply-3", events[1].ReplyToken)
	assert.True(t, events[1].Redelivery)
}

func TestParseRequest_BadSignature(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not base64", "%%%"},
		{"wrong secret", Sign("other-secret", []byte(sampleBody))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(sampleBody))
			if tt.header != "" {
				r.Header.Set(SignatureHeader, tt.header)
			}
			_, err := ParseRequest(testSecret, r)
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}
}

func TestParseRequest_TamperedBody(t *testing.T) {
	r := signedRequest(sampleBody, testSecret)
	r.Body = http.NoBody
	_, err := ParseRequest(testSecret, r)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParseRequest_Malformed(t *testing.T) {
	_, err := ParseRequest(testSecret, signedRequest(`{"events": [`, testSecret))
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestParseBody_EmptyEvents(t *testing.T) {
	// LINE sends this when verifying the webhook URL.
	events, err := ParseBody([]byte(`{"destination":"U1","events":[]}`))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestVerifySignature(t *testing.T) {
	body := []byte("hello")
	assert.True(t, VerifySignature("s", body, Sign("s", body)))
	assert.False(t, VerifySignature("s", []byte("hellO"), Sign("s", body)))
}
