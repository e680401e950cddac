// Package level holds the static hunt content: level records and the
// catalog that orders them into a single chain.
package level

import "errors"

// Completed is the successor sentinel of the terminal level.
const Completed = "COMPLETED"

// Welcome is reserved for the pre-game state and cannot be a level id.
const Welcome = "WELCOME"

var (
	ErrLevelNotFound  = errors.New("level not found")
	ErrInvalidCatalog = errors.New("invalid level catalog")
)

// Level is one stage of the hunt.
type Level struct {
	ID              string `json:"id" yaml:"id"`
	IntroText       string `json:"intro,omitempty" yaml:"intro,omitempty"`
	QuestionText    string `json:"question" yaml:"question"`
	QuestionImage   string `json:"question_image,omitempty" yaml:"question_image,omitempty"`
	CanonicalAnswer string `json:"answer" yaml:"answer"`
	TransitionText  string `json:"transition" yaml:"transition"`
	TransitionImage string `json:"transition_image,omitempty" yaml:"transition_image,omitempty"`
	NextLevelID     string `json:"next,omitempty" yaml:"next,omitempty"`
}

// IsTerminal reports whether completing this level ends the game.
func (l Level) IsTerminal() bool {
	return l.NextLevelID == Completed
}
