// Package workflow sequences an operator's conciliation session:
//
//	NoFile --upload--> AwaitingSecondFile --upload|skip--> ReadyToReconcile
//	       --conciliate--> ShowingResults --reset--> NoFile
//
// Transition is a pure reducer over (Session, Event). Orchestrator wraps
// it with the gateway calls and the single in-flight operation guard.
package workflow

import (
	"errors"
	"fmt"
	"slices"

	"receivables-conciliation-backend/internal/conciliation"
)

var (
	ErrInvalidTransition = errors.New("invalid workflow transition")
	ErrUnknownEvent      = errors.New("unknown workflow event")
	ErrTokenChanged      = errors.New("session token changed between uploads")
	ErrMissingToken      = errors.New("upload response carried no session token")
	ErrBusy              = errors.New("another operation is in progress")
	ErrStaleResponse     = errors.New("response arrived for a discarded session")
)

type Step int

const (
	StepNoFile Step = iota
	StepAwaitingSecondFile
	StepReadyToReconcile
	StepShowingResults
)

var stepNames = map[Step]string{
	StepNoFile:             "no_file",
	StepAwaitingSecondFile: "awaiting_second_file",
	StepReadyToReconcile:   "ready_to_reconcile",
	StepShowingResults:     "showing_results",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Step) UnmarshalText(text []byte) error {
	parsed, err := ParseStep(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func ParseStep(name string) (Step, error) {
	for step, n := range stepNames {
		if n == name {
			return step, nil
		}
	}
	return StepNoFile, fmt.Errorf("unknown workflow step %q", name)
}

// Session is the state of one workflow. The zero value is a fresh
// workflow in StepNoFile.
type Session struct {
	Step             Step                    `json:"step"`
	Token            string                  `json:"-"`
	ReceivablesCount int                     `json:"receivables_count"`
	PaymentsCount    int                     `json:"payments_count"`
	Uploads          int                     `json:"uploads"`
	RowErrors        []conciliation.RowError `json:"row_errors,omitempty"`
	Result           *conciliation.Result    `json:"-"`
	LastError        string                  `json:"last_error,omitempty"`
}

// HasToken reports whether the remote service has issued a session token.
func (s Session) HasToken() bool {
	return s.Token != ""
}

// Clone returns a copy that shares no slices with s. Result is shared;
// it is never mutated after being stored.
func (s Session) Clone() Session {
	s.RowErrors = slices.Clone(s.RowErrors)
	return s
}

// Event is an input to Transition. The set is closed.
type Event interface {
	eventName() string
}

type UploadSucceeded struct {
	Result conciliation.UploadResult
}

type UploadFailed struct {
	Message string
}

type Skipped struct{}

type ConciliationSucceeded struct {
	Result conciliation.Result
}

type ConciliationFailed struct {
	Message string
}

type Reset struct{}

func (UploadSucceeded) eventName() string       { return "upload_succeeded" }
func (UploadFailed) eventName() string          { return "upload_failed" }
func (Skipped) eventName() string               { return "skipped" }
func (ConciliationSucceeded) eventName() string { return "conciliation_succeeded" }
func (ConciliationFailed) eventName() string    { return "conciliation_failed" }
func (Reset) eventName() string                 { return "reset" }

// EventName is the stable name of e, used for logs and the audit trail.
func EventName(e Event) string {
	if e == nil {
		return "nil"
	}
	return e.eventName()
}

// AcceptsUpload reports whether an upload may be issued in step s.
func AcceptsUpload(s Step) bool {
	return s == StepNoFile || s == StepAwaitingSecondFile
}

// Transition applies e to s. On error the returned session is s unchanged.
// Failure events keep counts, token and step and only record the message.
func Transition(s Session, e Event) (Session, error) {
	next := s.Clone()

	switch ev := e.(type) {
	case UploadSucceeded:
		if ev.Result.Summary.ReceivablesCount < 0 || ev.Result.Summary.PaymentsCount < 0 {
			return s, fmt.Errorf("%w: negative record count", conciliation.ErrInvalidPayload)
		}
		switch s.Step {
		case StepNoFile:
			if ev.Result.SessionToken == "" {
				return s, ErrMissingToken
			}
			next.Token = ev.Result.SessionToken
			next.ReceivablesCount = ev.Result.Summary.ReceivablesCount
			next.PaymentsCount = ev.Result.Summary.PaymentsCount
			next.Step = StepAwaitingSecondFile
		case StepAwaitingSecondFile:
			if ev.Result.SessionToken != "" && ev.Result.SessionToken != s.Token {
				return s, ErrTokenChanged
			}
			next.ReceivablesCount += ev.Result.Summary.ReceivablesCount
			next.PaymentsCount += ev.Result.Summary.PaymentsCount
			next.Step = StepReadyToReconcile
		default:
			return s, invalid(s.Step, e)
		}
		next.Uploads++
		next.RowErrors = slices.Clone(ev.Result.Summary.Errors)
		next.LastError = ""
		return next, nil

	case UploadFailed:
		if !AcceptsUpload(s.Step) {
			return s, invalid(s.Step, e)
		}
		next.LastError = ev.Message
		return next, nil

	case Skipped:
		if s.Step != StepAwaitingSecondFile {
			return s, invalid(s.Step, e)
		}
		next.Step = StepReadyToReconcile
		next.LastError = ""
		return next, nil

	case ConciliationSucceeded:
		if s.Step != StepReadyToReconcile {
			return s, invalid(s.Step, e)
		}
		result := ev.Result
		next.Result = &result
		next.Step = StepShowingResults
		next.LastError = ""
		return next, nil

	case ConciliationFailed:
		if s.Step != StepReadyToReconcile {
			return s, invalid(s.Step, e)
		}
		next.LastError = ev.Message
		return next, nil

	case Reset:
		return Session{}, nil

	default:
		return s, fmt.Errorf("%w: %T", ErrUnknownEvent, e)
	}
}

func invalid(step Step, e Event) error {
	return fmt.Errorf("%w: %s in %s", ErrInvalidTransition, EventName(e), step)
}
