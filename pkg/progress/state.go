// Package progress models a player's position in the hunt.
package progress

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnrecognizedState is returned when a stored state token cannot be
// decoded. It only arises from corrupted or foreign data.
var ErrUnrecognizedState = errors.New("unrecognized progress state")

// Kind is the phase of a player's session.
type Kind int

const (
	// KindUnknown is the zero value; it never appears in a decoded State.
	KindUnknown Kind = iota
	KindWelcome
	KindAnswering
	KindWaiting
	KindCompleted
)

const (
	tokenWelcome   = "WELCOME"
	tokenCompleted = "COMPLETED"
	suffixAnswer   = "_ANSWERING"
	suffixWaiting  = "_WAITING"
)

func (k Kind) String() string {
	switch k {
	case KindWelcome:
		return "welcome"
	case KindAnswering:
		return "answering"
	case KindWaiting:
		return "waiting"
	case KindCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// State is a player's session state. LevelID is set only for Answering
// and Waiting.
type State struct {
	Kind    Kind
	LevelID string
}

func Welcome() State                 { return State{Kind: KindWelcome} }
func Completed() State               { return State{Kind: KindCompleted} }
func Answering(levelID string) State { return State{Kind: KindAnswering, LevelID: levelID} }
func Waiting(levelID string) State   { return State{Kind: KindWaiting, LevelID: levelID} }

// String returns the storage token: WELCOME, COMPLETED, <level>_ANSWERING
// or <level>_WAITING.
func (s State) String() string {
	switch s.Kind {
	case KindWelcome:
		return tokenWelcome
	case KindCompleted:
		return tokenCompleted
	case KindAnswering:
		return s.LevelID + suffixAnswer
	case KindWaiting:
		return s.LevelID + suffixWaiting
	default:
		return ""
	}
}

// ParseState decodes a storage token.
func ParseState(token string) (State, error) {
	switch token {
	case tokenWelcome:
		return Welcome(), nil
	case tokenCompleted:
		return Completed(), nil
	}
	if id, ok := strings.CutSuffix(token, suffixAnswer); ok && id != "" {
		return Answering(id), nil
	}
	if id, ok := strings.CutSuffix(token, suffixWaiting); ok && id != "" {
		return Waiting(id), nil
	}
	return State{}, fmt.Errorf("%w: %q", ErrUnrecognizedState, token)
}

// MarshalText encodes the state as its storage token.
func (s State) MarshalText() ([]byte, error) {
	if s.Kind == KindUnknown {
		return nil, ErrUnrecognizedState
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a storage token.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
