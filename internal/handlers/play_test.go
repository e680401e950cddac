package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/hunt-engine/internal/storage"
	"github.com/jwebster45206/hunt-engine/pkg/message"
)

func play(t *testing.T, h http.Handler, body string) (int, PlayResponse) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/play", strings.NewReader(body)))
	var resp PlayResponse
	if rr.Code == http.StatusOK || rr.Code == http.StatusServiceUnavailable {
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	}
	return rr.Code, resp
}

func TestPlayHandler_PlayThrough(t *testing.T) {
	h := NewPlayHandler(testEngine(t, storage.NewMockStorage()), testLogger())

	code, resp := play(t, h, `{"user_id":"U1","event":"follow"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "welcome", resp.Outcome)
	assert.Equal(t, "WELCOME", resp.State)

	steps := []struct {
		msg     string
		state   string
		outcome string
	}{
		{"start", "L01_ANSWERING", "started"},
		{"green", "L01_ANSWERING", "wrong"},
		{"Blue!", "L01_WAITING", "correct"},
		{"到", "L02_ANSWERING", "arrived"},
		{"RED", "COMPLETED", "finished"},
		{"hello", "COMPLETED", "completed_notice"},
		{"重置", "WELCOME", "reset"},
	}
	for _, s := range steps {
		code, resp := play(t, h, `{"user_id":"U1","message":"`+s.msg+`"}`)
		require.Equal(t, http.StatusOK, code, s.msg)
		assert.Equal(t, s.state, resp.State, s.msg)
		assert.Equal(t, s.outcome, resp.Outcome, s.msg)
		assert.NotEmpty(t, resp.Messages, s.msg)
	}
}

func TestPlayHandler_ImageDirectives(t *testing.T) {
	h := NewPlayHandler(testEngine(t, storage.NewMockStorage()), testLogger())

	_, resp := play(t, h, `{"user_id":"U1","message":"START"}`)
	last := resp.Messages[len(resp.Messages)-1]
	assert.Equal(t, message.KindImage, last.Kind)
	assert.Equal(t, "https://example.com/q1.jpg", last.URL)
}

func TestPlayHandler_BadRequests(t *testing.T) {
	h := NewPlayHandler(testEngine(t, storage.NewMockStorage()), testLogger())

	tests := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"invalid json", http.MethodPost, `{`, http.StatusBadRequest},
		{"missing user", http.MethodPost, `{"message":"start"}`, http.StatusBadRequest},
		{"unknown event", http.MethodPost, `{"user_id":"U1","event":"unfollow"}`, http.StatusBadRequest},
		{"wrong method", http.MethodGet, ``, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(tt.method, "/v1/play", strings.NewReader(tt.body)))
			assert.Equal(t, tt.want, rr.Code)

			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestPlayHandler_StoreUnavailable(t *testing.T) {
	store := storage.NewMockStorage()
	store.SetLoadError(errors.New("connection refused"))
	e := testEngine(t, store)
	h := NewPlayHandler(e, testLogger())

	code, resp := play(t, h, `{"user_id":"U1","message":"start"}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "store_unavailable", resp.Outcome)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, e.Copy().TransientError, resp.Messages[0].Text)
}
