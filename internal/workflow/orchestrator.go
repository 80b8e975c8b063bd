package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"receivables-conciliation-backend/internal/conciliation"
)

// Gateway is the remote side of the workflow.
type Gateway interface {
	// Upload sends one file. sessionToken is empty for the first upload.
	Upload(ctx context.Context, file conciliation.File, sessionToken string) (*conciliation.UploadResult, error)
	Conciliate(ctx context.Context, sessionToken string) (*conciliation.Result, error)
}

// Observer is told about every applied transition, after the fact and
// outside the orchestrator's lock.
type Observer func(from, to Session, event Event)

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithObserver(fn Observer) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.observers = append(o.observers, fn)
		}
	}
}

// Orchestrator drives one workflow. At most one gateway call is in flight
// at a time; Upload, Skip and Conciliate return ErrBusy while it is.
//
// Reset is always accepted. It discards the session immediately and bumps
// the generation, so a response that arrives afterwards for the discarded
// session is dropped with ErrStaleResponse instead of being applied. The
// in-flight slot stays taken until that late call returns.
type Orchestrator struct {
	gateway   Gateway
	logger    *slog.Logger
	observers []Observer

	mu         sync.Mutex
	session    Session
	busy       bool
	generation uint64
}

func New(gateway Gateway, opts ...Option) *Orchestrator {
	return Restore(gateway, Session{}, opts...)
}

// Restore rebuilds an orchestrator around a previously saved session.
func Restore(gateway Gateway, snapshot Session, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gateway: gateway,
		logger:  slog.Default(),
		session: snapshot.Clone(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Session returns a copy of the current state.
func (o *Orchestrator) Session() Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.Clone()
}

func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy
}

// Upload sends file to the upload gateway, reusing the session token after
// the first upload. A failed call leaves step, token and counts unchanged.
func (o *Orchestrator) Upload(ctx context.Context, file conciliation.File) (Session, error) {
	gen, token, err := o.begin("upload", AcceptsUpload)
	if err != nil {
		return o.Session(), err
	}

	o.logger.Info("uploading file", "file", file.Name, "has_session", token != "")

	res, callErr := o.gateway.Upload(ctx, file, token)
	if callErr == nil && res == nil {
		callErr = fmt.Errorf("%w: empty upload response", conciliation.ErrInvalidPayload)
	}
	if callErr != nil {
		o.logger.Warn("upload failed", "file", file.Name, "error", callErr)
		s, err := o.complete(gen, UploadFailed{Message: conciliation.UserMessage(callErr, conciliation.MsgUploadFailed)})
		if err != nil {
			return s, err
		}
		return s, callErr
	}

	if n := len(res.Summary.Errors); n > 0 {
		o.logger.Warn("upload has row errors", "file", file.Name, "rows", n)
	}
	return o.complete(gen, UploadSucceeded{Result: *res})
}

// Skip moves on to conciliation without a second upload.
func (o *Orchestrator) Skip() (Session, error) {
	o.mu.Lock()
	if o.busy {
		s := o.session.Clone()
		o.mu.Unlock()
		return s, ErrBusy
	}
	from := o.session
	next, err := Transition(from, Skipped{})
	if err != nil {
		o.mu.Unlock()
		return from.Clone(), err
	}
	o.session = next
	o.mu.Unlock()

	o.notify(from, next, Skipped{})
	return next.Clone(), nil
}

// Conciliate asks the service to match the uploaded records. A failure
// keeps the workflow in StepReadyToReconcile so the caller may retry.
func (o *Orchestrator) Conciliate(ctx context.Context) (Session, error) {
	gen, token, err := o.begin("conciliate", func(s Step) bool { return s == StepReadyToReconcile })
	if err != nil {
		return o.Session(), err
	}

	o.logger.Info("running conciliation")

	res, callErr := o.gateway.Conciliate(ctx, token)
	if callErr == nil {
		if res == nil {
			callErr = fmt.Errorf("%w: empty conciliation response", conciliation.ErrInvalidPayload)
		} else {
			callErr = res.Validate()
		}
	}
	if callErr != nil {
		o.logger.Warn("conciliation failed", "error", callErr)
		s, err := o.complete(gen, ConciliationFailed{Message: conciliation.UserMessage(callErr, conciliation.MsgConciliateFailed)})
		if err != nil {
			return s, err
		}
		return s, callErr
	}

	o.logger.Info("conciliation completed",
		"run_id", res.RunID,
		"matched", res.Summary.MatchedCount,
		"unmatched_receivables", res.Summary.UnmatchedReceivablesCount,
		"unmatched_payments", res.Summary.UnmatchedPaymentsCount,
	)
	return o.complete(gen, ConciliationSucceeded{Result: *res})
}

// Reset discards token, counts and results and returns to StepNoFile.
func (o *Orchestrator) Reset() Session {
	o.mu.Lock()
	from := o.session
	o.generation++
	next, _ := Transition(from, Reset{})
	o.session = next
	pending := o.busy
	o.mu.Unlock()

	if pending {
		o.logger.Info("reset while a call is in flight, its response will be dropped")
	}
	o.notify(from, next, Reset{})
	return next.Clone()
}

// begin claims the in-flight slot if the current step allows op.
func (o *Orchestrator) begin(op string, allowed func(Step) bool) (uint64, string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.busy {
		return 0, "", ErrBusy
	}
	if !allowed(o.session.Step) {
		return 0, "", fmt.Errorf("%w: %s in %s", ErrInvalidTransition, op, o.session.Step)
	}
	o.busy = true
	return o.generation, o.session.Token, nil
}

// complete releases the in-flight slot and applies ev unless the session
// was reset while the call was running.
func (o *Orchestrator) complete(gen uint64, ev Event) (Session, error) {
	o.mu.Lock()
	o.busy = false

	if gen != o.generation {
		s := o.session.Clone()
		o.mu.Unlock()
		o.logger.Info("dropping response for discarded session", "event", EventName(ev))
		return s, ErrStaleResponse
	}

	from := o.session
	next, err := Transition(from, ev)
	applied := ev
	if err != nil {
		// the service answered, but with something the session cannot accept
		applied = rejected(ev, err)
		next, _ = Transition(from, applied)
	}
	o.session = next
	o.mu.Unlock()

	o.notify(from, next, applied)
	return next.Clone(), err
}

// rejected turns a success event the session refused into the matching
// failure event.
func rejected(ev Event, err error) Event {
	if _, ok := ev.(ConciliationSucceeded); ok {
		msg := err.Error()
		if errors.Is(err, conciliation.ErrInvalidPayload) {
			msg = conciliation.MsgConciliateFailed
		}
		return ConciliationFailed{Message: msg}
	}

	msg := err.Error()
	if errors.Is(err, conciliation.ErrInvalidPayload) {
		msg = conciliation.MsgUploadFailed
	}
	return UploadFailed{Message: msg}
}

func (o *Orchestrator) notify(from, to Session, ev Event) {
	o.logger.Debug("workflow transition", "event", EventName(ev), "from", from.Step, "to", to.Step)
	for _, fn := range o.observers {
		fn(from.Clone(), to.Clone(), ev)
	}
}
