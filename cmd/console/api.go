package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jwebster45206/hunt-engine/internal/handlers"
)

// errNoProgress is returned by getProgress for a player the API has never
// seen.
var errNoProgress = errors.New("no progress yet")

// APIClient talks to the hunt API's playtest endpoints.
type APIClient struct {
	client  *http.Client
	baseURL string
}

func NewAPIClient(client *http.Client, baseURL string) *APIClient {
	return &APIClient{client: client, baseURL: baseURL}
}

func (c *APIClient) testConnection() bool {
	resp, err := c.client.Get(c.baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

// play sends a message (or, with event "follow", a friend-add) as userID.
func (c *APIClient) play(userID, event, message string) (*handlers.PlayResponse, error) {
	jsonData, err := json.Marshal(handlers.PlayRequest{
		UserID:  userID,
		Message: message,
		Event:   event,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.client.Post(c.baseURL+"/v1/play", "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	var playResp handlers.PlayResponse
	// 503 still carries the transient-failure message for the player.
	if err := decode(resp, &playResp, http.StatusOK, http.StatusServiceUnavailable); err != nil {
		return nil, err
	}
	return &playResp, nil
}

func (c *APIClient) getProgress(userID string) (*handlers.ProgressResponse, error) {
	resp, err := c.client.Get(c.baseURL + "/v1/progress/" + userID)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errNoProgress
	}
	var progress handlers.ProgressResponse
	if err := decode(resp, &progress, http.StatusOK); err != nil {
		return nil, err
	}
	return &progress, nil
}

func (c *APIClient) resetProgress(userID string) (*handlers.PlayResponse, error) {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+"/v1/progress/"+userID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	var playResp handlers.PlayResponse
	if err := decode(resp, &playResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &playResp, nil
}

func (c *APIClient) listLevels() (*handlers.LevelsResponse, error) {
	resp, err := c.client.Get(c.baseURL + "/v1/levels")
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	var levels handlers.LevelsResponse
	if err := decode(resp, &levels, http.StatusOK); err != nil {
		return nil, err
	}
	return &levels, nil
}

// decode reads a JSON body into v when the status is one of ok, and turns
// anything else into an error carrying the API's message.
func decode(resp *http.Response, v any, ok ...int) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	for _, code := range ok {
		if resp.StatusCode == code {
			if err := json.Unmarshal(body, v); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
			return nil
		}
	}

	var errorResp handlers.ErrorResponse
	if err := json.Unmarshal(body, &errorResp); err != nil || errorResp.Error == "" {
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}
	return fmt.Errorf("request failed: %s", errorResp.Error)
}
