package progress

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseState(t *testing.T) {
	tests := []struct {
		token string
		want  State
	}{
		{"WELCOME", Welcome()},
		{"COMPLETED", Completed()},
		{"L01_ANSWERING", Answering("L01")},
		{"L01_WAITING", Waiting("L01")},
		{"stage_2_ANSWERING", Answering("stage_2")},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ParseState(tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.token, got.String())
		})
	}
}

func TestParseState_Unrecognized(t *testing.T) {
	for _, token := range []string{"", "L01", "welcome", "_ANSWERING", "_WAITING", "L01_DONE"} {
		_, err := ParseState(token)
		assert.ErrorIs(t, err, ErrUnrecognizedState, "token %q", token)
	}
}

func TestUserProgress_JSON(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	p := New("U123", now)
	p.State = Waiting("L03")
	p.Version = 4

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"state":"L03_WAITING"`)

	var decoded UserProgress
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, *p, decoded)
}

func TestUserProgress_JSONCorruptState(t *testing.T) {
	var decoded UserProgress
	err := json.Unmarshal([]byte(`{"user_id":"U1","state":"L01"}`), &decoded)
	assert.ErrorIs(t, err, ErrUnrecognizedState)
}

func TestState_MarshalUnknown(t *testing.T) {
	_, err := json.Marshal(State{})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	p := New("U1", time.Now())
	assert.True(t, p.IsNew())
	assert.Equal(t, Welcome(), p.State)
}
