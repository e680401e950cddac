package line

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/jwebster45206/hunt-engine/pkg/message"
)

// ResilientClient wraps a Messenger with retries on throttling and server
// errors, behind a circuit breaker.
type ResilientClient struct {
	next           Messenger
	circuitBreaker circuitbreaker.CircuitBreaker[struct{}]
	retrier        retry.Retry[struct{}]
}

var _ Messenger = (*ResilientClient)(nil)

type ResilientConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// FailuresToTrip is the number of consecutive failed calls that opens
	// the breaker.
	FailuresToTrip int
	OpenTimeout    time.Duration
	Logger         *slog.Logger
}

func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       2 * time.Second,
		FailuresToTrip: 5,
		OpenTimeout:    30 * time.Second,
	}
}

func NewResilientClient(next Messenger, cfg ResilientConfig) *ResilientClient {
	def := DefaultResilientConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	trip := cfg.FailuresToTrip
	if trip <= 0 {
		trip = def.FailuresToTrip
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ResilientClient{
		next: next,
		circuitBreaker: circuitbreaker.New[struct{}](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return int(counts.ConsecutiveFailures) >= trip
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				logger.Warn("LINE circuit breaker state change", "from", from.String(), "to", to.String())
			},
		}),
		retrier: retry.New[struct{}](retry.Config{
			MaxAttempts:   cfg.MaxAttempts,
			InitialDelay:  cfg.InitialDelay,
			MaxDelay:      cfg.MaxDelay,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   isRetryable,
		}),
	}
}

func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (c *ResilientClient) Reply(ctx context.Context, replyToken string, directives []message.Directive) error {
	return c.do(ctx, func(ctx context.Context) error {
		return c.next.Reply(ctx, replyToken, directives)
	})
}

func (c *ResilientClient) Push(ctx context.Context, userID string, directives []message.Directive) error {
	return c.do(ctx, func(ctx context.Context) error {
		return c.next.Push(ctx, userID, directives)
	})
}

func (c *ResilientClient) do(ctx context.Context, call func(ctx context.Context) error) error {
	_, err := c.circuitBreaker.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		return c.retrier.Do(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, call(ctx)
		})
	})
	return err
}
