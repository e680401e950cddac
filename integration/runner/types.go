package runner

import (
	"time"
)

// Special step messages that trigger non-chat actions
const (
	ResetProgressMessage = "#RESET_PROGRESS"
)

// Transports a suite can drive the game through.
const (
	ViaPlay    = "play"
	ViaWebhook = "webhook"
)

// TestSuite defines a complete integration test scenario
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name  string     `json:"name"`
	Via   string     `json:"via,omitempty"`   // "play" (default) or "webhook"
	Steps []TestStep `json:"steps,omitempty"` // Used for regular tests
	Cases []string   `json:"cases,omitempty"` // Used for sequences (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// Transport returns the suite's transport, defaulting to play.
func (ts *TestSuite) Transport() string {
	if ts.Via == "" {
		return ViaPlay
	}
	return ts.Via
}

// TestStep is one inbound event and its expected outcome.
// Use message "#RESET_PROGRESS" to delete the player's progress.
type TestStep struct {
	Name    string       `json:"name,omitempty"`
	Event   string       `json:"event,omitempty"` // "message" (default) or "follow"
	Message string       `json:"message,omitempty"`
	Expect  Expectations `json:"expect"`
}

// Expectations defines what to check after a test step executes.
// Webhook suites can only check State, since replies go to LINE.
type Expectations struct {
	State   *string `json:"state,omitempty"`
	Outcome *string `json:"outcome,omitempty"`

	ResponseContains    []string `json:"response_contains,omitempty"`
	ResponseNotContains []string `json:"response_not_contains,omitempty"`
	MessageCount        *int     `json:"message_count,omitempty"`
	ImageCount          *int     `json:"image_count,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	StepName     string
	Success      bool
	Error        error
	Duration     time.Duration
	ResponseText string
	IsReset      bool // reset steps don't count toward pass/fail metrics
}

// TestJob is a loaded suite ready to run.
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job      TestJob
	UserID   string
	Results  []TestResult
	Duration time.Duration
	Error    error
}
