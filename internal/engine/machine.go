package engine

import (
	"fmt"

	"github.com/jwebster45206/hunt-engine/pkg/answer"
	"github.com/jwebster45206/hunt-engine/pkg/level"
	"github.com/jwebster45206/hunt-engine/pkg/message"
	"github.com/jwebster45206/hunt-engine/pkg/progress"
)

// Outcome names what an event did. It is reported to callers, logged and
// used as a metrics label.
type Outcome string

const (
	OutcomeReset            Outcome = "reset"
	OutcomeWelcome          Outcome = "welcome"
	OutcomeStarted          Outcome = "started"
	OutcomeStartPrompt      Outcome = "start_prompt"
	OutcomeCompletedNotice  Outcome = "completed_notice"
	OutcomeArrived          Outcome = "arrived"
	OutcomeArrivalReminder  Outcome = "arrival_reminder"
	OutcomeCorrect          Outcome = "correct"
	OutcomeFinished         Outcome = "finished"
	OutcomeWrong            Outcome = "wrong"
	OutcomeSystemError      Outcome = "system_error"
	OutcomeCorruptState     Outcome = "corrupt_state"
	OutcomeStoreUnavailable Outcome = "store_unavailable"
)

// Transition is the result of applying one input to one state.
type Transition struct {
	Next       progress.State
	Directives []message.Directive
	Outcome    Outcome
}

// Step applies input to the current state. It does no I/O.
//
// A catalog miss returns the system-error transition, which leaves the
// state unchanged, together with an error wrapping level.ErrLevelNotFound.
func Step(cat *level.Catalog, cp *Copy, current progress.State, input string) (Transition, error) {
	if cp.isReset(input) {
		return resetTransition(cp), nil
	}

	switch current.Kind {
	case progress.KindWelcome:
		if !cp.isStart(input) {
			return Transition{
				Next:       current,
				Directives: textOnly(cp.StartPrompt),
				Outcome:    OutcomeStartPrompt,
			}, nil
		}
		first := cat.First()
		var b message.Builder
		b.Text(cp.StartBanner)
		appendQuestion(&b, cp, first)
		return Transition{
			Next:       progress.Answering(first.ID),
			Directives: b.Build(),
			Outcome:    OutcomeStarted,
		}, nil

	case progress.KindCompleted:
		return Transition{
			Next:       current,
			Directives: textOnly(cp.CompletedNotice),
			Outcome:    OutcomeCompletedNotice,
		}, nil

	case progress.KindWaiting:
		return stepWaiting(cat, cp, current, input)

	case progress.KindAnswering:
		return stepAnswering(cat, cp, current, input)

	default:
		return corruptTransition(cp, current), nil
	}
}

func stepWaiting(cat *level.Catalog, cp *Copy, current progress.State, input string) (Transition, error) {
	if !cp.isArrival(input) {
		return Transition{
			Next:       current,
			Directives: textOnly(cp.ArrivalReminder),
			Outcome:    OutcomeArrivalReminder,
		}, nil
	}

	lvl, err := cat.Lookup(current.LevelID)
	if err != nil {
		return systemErrorTransition(cp, current), err
	}
	if lvl.IsTerminal() {
		return Transition{
			Next:       progress.Completed(),
			Directives: textOnly(lvl.TransitionText),
			Outcome:    OutcomeFinished,
		}, nil
	}

	next, err := cat.Lookup(lvl.NextLevelID)
	if err != nil {
		return systemErrorTransition(cp, current), fmt.Errorf("successor of %s: %w", lvl.ID, err)
	}
	var b message.Builder
	b.Text(cp.ArrivalAck)
	appendQuestion(&b, cp, next)
	return Transition{
		Next:       progress.Answering(next.ID),
		Directives: b.Build(),
		Outcome:    OutcomeArrived,
	}, nil
}

func stepAnswering(cat *level.Catalog, cp *Copy, current progress.State, input string) (Transition, error) {
	lvl, err := cat.Lookup(current.LevelID)
	if err != nil {
		return systemErrorTransition(cp, current), err
	}

	if !answer.Match(input, lvl.CanonicalAnswer) {
		var b message.Builder
		b.Text(cp.WrongAnswer)
		appendQuestion(&b, cp, lvl)
		return Transition{
			Next:       current,
			Directives: b.Build(),
			Outcome:    OutcomeWrong,
		}, nil
	}

	if lvl.IsTerminal() {
		return Transition{
			Next:       progress.Completed(),
			Directives: textOnly(lvl.TransitionText),
			Outcome:    OutcomeFinished,
		}, nil
	}

	var b message.Builder
	b.Text(lvl.TransitionText).
		Image(lvl.TransitionImage).
		Text(cp.TravelPrompt)
	return Transition{
		Next:       progress.Waiting(lvl.ID),
		Directives: b.Build(),
		Outcome:    OutcomeCorrect,
	}, nil
}

func resetTransition(cp *Copy) Transition {
	var b message.Builder
	b.Text(cp.ResetConfirm).Text(cp.Welcome)
	return Transition{
		Next:       progress.Welcome(),
		Directives: b.Build(),
		Outcome:    OutcomeReset,
	}
}

func corruptTransition(cp *Copy, current progress.State) Transition {
	return Transition{
		Next:       current,
		Directives: textOnly(cp.CorruptState),
		Outcome:    OutcomeCorruptState,
	}
}

func systemErrorTransition(cp *Copy, current progress.State) Transition {
	return Transition{
		Next:       current,
		Directives: textOnly(cp.SystemError),
		Outcome:    OutcomeSystemError,
	}
}

// appendQuestion adds a level's intro, headed question and image.
func appendQuestion(b *message.Builder, cp *Copy, lvl level.Level) {
	question := lvl.QuestionText
	if header := cp.questionHeader(lvl.ID); header != "" {
		question = header + "\n" + question
	}
	b.Text(lvl.IntroText).
		Text(question).
		Image(lvl.QuestionImage)
}

func textOnly(body string) []message.Directive {
	var b message.Builder
	return b.Text(body).Build()
}
