package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/hunt-engine/internal/handlers"
	"github.com/jwebster45206/hunt-engine/pkg/message"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes integration tests against a running hunt-engine API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...interface{})
	ErrorHandlingMode ErrorHandlingMode
	ChannelSecret     string // signs webhook suites; must match the server's LINE_CHANNEL_SECRET
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 30 * time.Second},
		Timeout:           30 * time.Second,
		Logger:            func(string, ...interface{}) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}

	switch suite.Transport() {
	case ViaPlay, ViaWebhook:
	default:
		return TestSuite{}, fmt.Errorf("%s: unknown via %q", filename, suite.Via)
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
// Returns a list of actual test suites (expanded from the sequence if needed)
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// a sequence may reference another sequence
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}

		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// RunSuite plays every step of suite as a fresh player.
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		UserID:  "Uit" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	if suite.Transport() == ViaWebhook && r.ChannelSecret == "" {
		result.Error = fmt.Errorf("suite %s needs a channel secret", suite.Name)
		return result, result.Error
	}

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)

		stepCtx, cancel := context.WithTimeout(ctx, r.Timeout)
		stepResult := r.runStep(stepCtx, suite.Transport(), result.UserID, step)
		cancel()
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}

		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

func (r *Runner) runStep(ctx context.Context, via, userID string, step TestStep) TestResult {
	start := time.Now()
	result := TestResult{StepName: step.Name}

	var (
		resp *handlers.PlayResponse
		err  error
	)
	switch {
	case step.Message == ResetProgressMessage:
		result.IsReset = true
		resp, err = r.resetProgress(ctx, userID)
	case via == ViaWebhook:
		resp, err = r.sendWebhook(ctx, userID, step)
	default:
		resp, err = r.play(ctx, userID, step)
	}
	if err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}

	result.ResponseText = responseText(resp.Messages)
	if err := checkExpectations(step.Expect, resp, via == ViaWebhook && !result.IsReset); err != nil {
		result.Error = fmt.Errorf("expectation failed: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	result.Success = true
	result.Duration = time.Since(start)
	return result
}

func (r *Runner) play(ctx context.Context, userID string, step TestStep) (*handlers.PlayResponse, error) {
	body, err := json.Marshal(handlers.PlayRequest{
		UserID:  userID,
		Message: step.Message,
		Event:   step.Event,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal play request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/v1/play", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create play request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return r.doPlay(req)
}

func (r *Runner) resetProgress(ctx context.Context, userID string) (*handlers.PlayResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, r.BaseURL+"/v1/progress/"+userID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create reset request: %w", err)
	}
	return r.doPlay(req)
}

func (r *Runner) doPlay(req *http.Request) (*handlers.PlayResponse, error) {
	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s %s returned %d: %s", req.Method, req.URL.Path, resp.StatusCode, string(b))
	}

	var out handlers.PlayResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode play response: %w", err)
	}
	return &out, nil
}

// sendWebhook posts the step through /callback. When the step expects a
// state, it waits for the queued event to reach it; replies go to LINE, so
// the state is all that can be checked.
func (r *Runner) sendWebhook(ctx context.Context, userID string, step TestStep) (*handlers.PlayResponse, error) {
	event := step.Event
	if event == "" {
		event = "message"
	}
	if err := PostWebhook(ctx, r.Client, r.BaseURL, r.ChannelSecret, userID, event, step.Message); err != nil {
		return nil, err
	}
	if step.Expect.State == nil {
		return &handlers.PlayResponse{UserID: userID}, nil
	}

	p, err := PollForState(ctx, r.Client, r.BaseURL, userID, *step.Expect.State)
	if err != nil {
		return nil, err
	}
	return &handlers.PlayResponse{UserID: p.UserID, State: p.State}, nil
}

func responseText(ms []message.Directive) string {
	var parts []string
	for _, m := range ms {
		if m.Kind == message.KindText {
			parts = append(parts, m.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// checkExpectations validates a step's expectations against the response.
func checkExpectations(exp Expectations, resp *handlers.PlayResponse, stateOnly bool) error {
	if exp.State != nil && resp.State != *exp.State {
		return fmt.Errorf("expected state %s, got %s", *exp.State, resp.State)
	}
	if stateOnly {
		return nil
	}

	if exp.Outcome != nil && resp.Outcome != *exp.Outcome {
		return fmt.Errorf("expected outcome %s, got %s", *exp.Outcome, resp.Outcome)
	}

	text := strings.ToLower(responseText(resp.Messages))
	for _, want := range exp.ResponseContains {
		if !strings.Contains(text, strings.ToLower(want)) {
			return fmt.Errorf("expected response to contain '%s', but it didn't", want)
		}
	}
	for _, unwanted := range exp.ResponseNotContains {
		if strings.Contains(text, strings.ToLower(unwanted)) {
			return fmt.Errorf("expected response to NOT contain '%s', but it did", unwanted)
		}
	}

	if exp.MessageCount != nil && len(resp.Messages) != *exp.MessageCount {
		return fmt.Errorf("expected %d messages, got %d", *exp.MessageCount, len(resp.Messages))
	}
	if exp.ImageCount != nil {
		images := 0
		for _, m := range resp.Messages {
			if m.Kind == message.KindImage {
				images++
			}
		}
		if images != *exp.ImageCount {
			return fmt.Errorf("expected %d images, got %d", *exp.ImageCount, images)
		}
	}

	return nil
}
