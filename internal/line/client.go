package line

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jwebster45206/hunt-engine/pkg/message"
)

// MaxMessagesPerCall is the most messages LINE accepts in one reply or
// push.
const MaxMessagesPerCall = 5

const (
	replyPath = "/v2/bot/message/reply"
	pushPath  = "/v2/bot/message/push"
)

// Messenger delivers directives to a user.
type Messenger interface {
	Reply(ctx context.Context, replyToken string, directives []message.Directive) error
	Push(ctx context.Context, userID string, directives []message.Directive) error
}

// APIError is a non-2xx response from the Messaging API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("line api: status %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed if sent again.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsInvalidReplyToken reports whether err is LINE rejecting an expired or
// already used reply token.
func IsInvalidReplyToken(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest
}

// Client calls the Messaging API over HTTP.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	logger      *slog.Logger
}

var _ Messenger = (*Client)(nil)

func NewClient(baseURL, accessToken string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
	}
}

type outboundMessage struct {
	Type               string `json:"type"`
	Text               string `json:"text,omitempty"`
	OriginalContentURL string `json:"originalContentUrl,omitempty"`
	PreviewImageURL    string `json:"previewImageUrl,omitempty"`
}

type replyRequest struct {
	ReplyToken string            `json:"replyToken"`
	Messages   []outboundMessage `json:"messages"`
}

type pushRequest struct {
	To       string            `json:"to"`
	Messages []outboundMessage `json:"messages"`
}

func (c *Client) Reply(ctx context.Context, replyToken string, directives []message.Directive) error {
	msgs, err := toMessages(directives)
	if err != nil {
		return err
	}
	return c.post(ctx, replyPath, replyRequest{ReplyToken: replyToken, Messages: msgs})
}

func (c *Client) Push(ctx context.Context, userID string, directives []message.Directive) error {
	msgs, err := toMessages(directives)
	if err != nil {
		return err
	}
	return c.post(ctx, pushPath, pushRequest{To: userID, Messages: msgs})
}

func toMessages(directives []message.Directive) ([]outboundMessage, error) {
	if len(directives) == 0 {
		return nil, errors.New("line: no messages to send")
	}
	if len(directives) > MaxMessagesPerCall {
		return nil, fmt.Errorf("line: %d messages exceeds the limit of %d", len(directives), MaxMessagesPerCall)
	}
	msgs := make([]outboundMessage, 0, len(directives))
	for _, d := range directives {
		switch d.Kind {
		case message.KindText:
			msgs = append(msgs, outboundMessage{Type: "text", Text: d.Text})
		case message.KindImage:
			preview := d.PreviewURL
			if preview == "" {
				preview = d.URL
			}
			msgs = append(msgs, outboundMessage{Type: "image", OriginalContentURL: d.URL, PreviewImageURL: preview})
		default:
			return nil, fmt.Errorf("line: unsupported directive type %q", d.Kind)
		}
	}
	return msgs, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("line: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("line: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("line: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	var apiErr struct {
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &apiErr) != nil || apiErr.Message == "" {
		apiErr.Message = string(data)
	}
	c.logger.Warn("LINE API request failed", "path", path, "status", resp.StatusCode, "message", apiErr.Message)
	return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Message}
}
