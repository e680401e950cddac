// Package engine runs the hunt's progress state machine against a
// progress store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/hunt-engine/internal/logger"
	"github.com/jwebster45206/hunt-engine/internal/metrics"
	"github.com/jwebster45206/hunt-engine/internal/storage"
	"github.com/jwebster45206/hunt-engine/pkg/level"
	"github.com/jwebster45206/hunt-engine/pkg/message"
	"github.com/jwebster45206/hunt-engine/pkg/progress"
)

// ErrStoreUnavailable is returned when the progress store could not be
// read or written in time. The event failed and no state was changed.
var ErrStoreUnavailable = errors.New("progress store unavailable")

const (
	DefaultStoreTimeout       = 5 * time.Second
	DefaultMaxConflictRetries = 3
)

const (
	eventMessage = "message"
	eventFollow  = "follow"
	eventReset   = "reset"
)

// ProgressStore is the part of storage.Storage the engine needs.
type ProgressStore interface {
	LoadProgress(ctx context.Context, userID string) (*progress.UserProgress, error)
	SaveProgress(ctx context.Context, p *progress.UserProgress) error
}

// Config holds the engine's collaborators. Catalog and Store are
// required; the rest have defaults.
type Config struct {
	Catalog *level.Catalog
	Store   ProgressStore
	Copy    *Copy
	// Locker serializes events per user. Nil relies on the store's
	// version check alone.
	Locker             Locker
	Logger             *slog.Logger
	Metrics            *metrics.Metrics
	StoreTimeout       time.Duration
	MaxConflictRetries int
	Now                func() time.Time
}

// Engine applies inbound events to stored progress.
type Engine struct {
	catalog    *level.Catalog
	store      ProgressStore
	copy       *Copy
	locker     Locker
	log        *slog.Logger
	metrics    *metrics.Metrics
	timeout    time.Duration
	maxRetries int
	now        func() time.Time
}

// Result is what one event did.
type Result struct {
	UserID     string
	Previous   progress.State
	State      progress.State
	Outcome    Outcome
	Directives []message.Directive
}

// New validates cfg and returns an engine over its catalog and copy.
func New(cfg Config) (*Engine, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("engine: catalog is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("engine: store is required")
	}
	e := &Engine{
		catalog:    cfg.Catalog,
		store:      cfg.Store,
		copy:       cfg.Copy,
		locker:     cfg.Locker,
		log:        cfg.Logger,
		metrics:    cfg.Metrics,
		timeout:    cfg.StoreTimeout,
		maxRetries: cfg.MaxConflictRetries,
		now:        cfg.Now,
	}
	if e.copy == nil {
		e.copy = DefaultCopy()
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.timeout <= 0 {
		e.timeout = DefaultStoreTimeout
	}
	if e.maxRetries <= 0 {
		e.maxRetries = DefaultMaxConflictRetries
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

// Catalog returns the levels the engine plays.
func (e *Engine) Catalog() *level.Catalog { return e.catalog }

// Copy returns the player-facing text and command tokens.
func (e *Engine) Copy() *Copy { return e.copy }

// HandleMessage applies a text message from userID.
//
// The returned error is non-nil only when the store failed; the Result
// then carries the transient-failure notice.
func (e *Engine) HandleMessage(ctx context.Context, userID, text string) (*Result, error) {
	return e.process(ctx, eventMessage, userID, func(p *progress.UserProgress) (Transition, error) {
		return Step(e.catalog, e.copy, p.State, text)
	})
}

// HandleFollow initializes a record for a new player and always answers
// with the welcome text. Existing progress is left as it is.
func (e *Engine) HandleFollow(ctx context.Context, userID string) (*Result, error) {
	return e.process(ctx, eventFollow, userID, func(p *progress.UserProgress) (Transition, error) {
		return Transition{
			Next:       p.State,
			Directives: textOnly(e.copy.Welcome),
			Outcome:    OutcomeWelcome,
		}, nil
	})
}

// Reset returns userID to the welcome state, as if they had sent a reset
// token.
func (e *Engine) Reset(ctx context.Context, userID string) (*Result, error) {
	return e.process(ctx, eventReset, userID, func(*progress.UserProgress) (Transition, error) {
		return resetTransition(e.copy), nil
	})
}

// Progress returns the stored record for userID, or nil if there is none.
// A record with a corrupt state is returned together with an error
// wrapping progress.ErrUnrecognizedState.
func (e *Engine) Progress(ctx context.Context, userID string) (*progress.UserProgress, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	p, err := e.store.LoadProgress(ctx, userID)
	if err != nil && !errors.Is(err, progress.ErrUnrecognizedState) {
		e.metrics.ObserveStoreError("load")
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return p, err
}

type decideFunc func(p *progress.UserProgress) (Transition, error)

func (e *Engine) process(ctx context.Context, event, userID string, decide decideFunc) (*Result, error) {
	start := time.Now()
	log := logger.WithUserID(e.log, userID).With("event", event)

	res, err := e.run(ctx, log, userID, decide)
	e.metrics.ObserveEvent(event, string(res.Outcome), time.Since(start))
	if res.Previous.Kind == progress.KindAnswering {
		switch res.Outcome {
		case OutcomeCorrect, OutcomeFinished:
			e.metrics.ObserveAnswer(res.Previous.LevelID, true)
		case OutcomeWrong:
			e.metrics.ObserveAnswer(res.Previous.LevelID, false)
		}
	}

	if err != nil {
		logger.WithError(log, err).Error("Event failed", "outcome", res.Outcome)
		return res, err
	}
	log.Debug("Event handled",
		"outcome", res.Outcome,
		"from", res.Previous.String(),
		"to", res.State.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (e *Engine) run(ctx context.Context, log *slog.Logger, userID string, decide decideFunc) (*Result, error) {
	if e.locker != nil {
		unlock, err := e.locker.Lock(ctx, userID)
		if err != nil {
			return e.unavailable(userID, progress.State{}), fmt.Errorf("%w: lock %s: %w", ErrStoreUnavailable, userID, err)
		}
		defer unlock()
	}

	for attempt := 0; ; attempt++ {
		p, err := e.load(ctx, userID)
		switch {
		case err == nil:
		case errors.Is(err, progress.ErrUnrecognizedState) && p != nil:
			// Step treats the zero state as corrupt; only a reset
			// moves it.
			log.Warn("Stored progress state is corrupt", "error", err)
		default:
			e.metrics.ObserveStoreError("load")
			return e.unavailable(userID, progress.State{}), fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		if p == nil {
			p = progress.New(userID, e.now())
		}

		tr, stepErr := decide(p)
		res := &Result{
			UserID:     userID,
			Previous:   p.State,
			State:      tr.Next,
			Outcome:    tr.Outcome,
			Directives: tr.Directives,
		}
		if stepErr != nil {
			// Catalog misses are reported to the player, not the caller.
			log.Error("Level lookup failed", "state", p.State.String(), "error", stepErr)
			return res, nil
		}

		changed := tr.Next != p.State
		if !changed && !p.IsNew() {
			return res, nil
		}

		next := *p
		next.State = tr.Next
		if changed {
			next.LastActivityTime = e.now()
		}
		err = e.save(ctx, &next)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, storage.ErrVersionConflict) {
			e.metrics.ObserveConflict()
			if attempt < e.maxRetries {
				log.Info("Progress changed concurrently, retrying", "attempt", attempt+1)
				continue
			}
		}
		e.metrics.ObserveStoreError("save")
		return e.unavailable(userID, p.State), fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}

func (e *Engine) load(ctx context.Context, userID string) (*progress.UserProgress, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.store.LoadProgress(ctx, userID)
}

func (e *Engine) save(ctx context.Context, p *progress.UserProgress) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.store.SaveProgress(ctx, p)
}

func (e *Engine) unavailable(userID string, current progress.State) *Result {
	return &Result{
		UserID:     userID,
		Previous:   current,
		State:      current,
		Outcome:    OutcomeStoreUnavailable,
		Directives: textOnly(e.copy.TransientError),
	}
}
