package engine

import (
	stdcontext "context"
	"time"

	"github.com/deltaengine/delta/internal/hooks"
	"github.com/deltaengine/delta/internal/journal"
)

// complete is the COMPLETED terminal path: finish signal or iteration cap.
// note is non-empty only for the cap, and is surfaced in the result text so
// callers can detect a cap hit (spec §7).
func (e *Engine) complete(ctx stdcontext.Context, start time.Time, resultText, note string) *Outcome {
	e.dispatchHook(ctx, hooks.OnRunEnd, nil, nil)

	msg := note
	e.mustAppend(journal.Event{
		Type:        journal.TypeEngineEnd,
		Timestamp:   time.Now().UTC(),
		FinalStatus: string(journal.StatusCompleted),
		Message:     msg,
	})
	e.patchMetadata(journal.StatusCompleted, "")

	if resultText == "" {
		resultText = note
	}
	return e.outcome(journal.StatusCompleted, start, func(o *Outcome) {
		o.Result = resultText
	})
}

// fail is the single fatal path: ERROR event, best-effort on_error hook,
// then ENGINE_END (spec §9's recommended order).
func (e *Engine) fail(ctx stdcontext.Context, start time.Time, kind string, err error) *Outcome {
	e.log.Error(ctx, "run failed", "kind", kind, "error", err)

	e.mustAppend(journal.Event{
		Type:         journal.TypeError,
		Timestamp:    time.Now().UTC(),
		ErrorKind:    kind,
		ErrorMessage: err.Error(),
	})

	e.dispatchHook(ctx, hooks.OnError, hooks.ErrorPayload{ErrorMessage: err.Error()}, nil)
	e.dispatchHook(ctx, hooks.OnRunEnd, nil, nil)

	e.mustAppend(journal.Event{
		Type:        journal.TypeEngineEnd,
		Timestamp:   time.Now().UTC(),
		FinalStatus: string(journal.StatusFailed),
		Message:     err.Error(),
	})
	e.patchMetadata(journal.StatusFailed, err.Error())

	return e.outcome(journal.StatusFailed, start, func(o *Outcome) {
		o.ErrKind = kind
		o.ErrMessage = err.Error()
	})
}

// interrupted handles SIGINT/SIGTERM: the in-flight child has already been
// given its chance to finish via context cancellation by the time the loop
// observes ctx.Err().
func (e *Engine) interrupted(ctx stdcontext.Context, start time.Time) *Outcome {
	e.dispatchHook(stdcontext.WithoutCancel(ctx), hooks.OnRunEnd, nil, nil)

	e.mustAppend(journal.Event{
		Type:        journal.TypeEngineEnd,
		Timestamp:   time.Now().UTC(),
		FinalStatus: string(journal.StatusInterrupted),
		Message:     "interrupted by signal",
	})
	e.patchMetadata(journal.StatusInterrupted, "")

	return e.outcome(journal.StatusInterrupted, start, nil)
}

func (e *Engine) patchMetadata(status journal.Status, errMsg string) {
	now := time.Now().UTC()
	if _, err := journal.UpdateMetadata(e.runDir, func(m *journal.Metadata) {
		m.Status = status
		m.EndTime = &now
		m.Iterations = e.iterations
		m.Error = errMsg
	}); err != nil {
		e.log.Error(stdcontext.Background(), "metadata update failed", "error", err)
	}
}

func (e *Engine) outcome(status journal.Status, start time.Time, mutate func(*Outcome)) *Outcome {
	end := time.Now().UTC()
	o := &Outcome{
		Status:     status,
		Iterations: e.iterations,
		Usage:      e.usage,
		StartTime:  start,
		EndTime:    end,
	}
	if mutate != nil {
		mutate(o)
	}
	return o
}
