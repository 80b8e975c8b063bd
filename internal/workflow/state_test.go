package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receivables-conciliation-backend/internal/conciliation"
)

func uploaded(token string, receivables, payments int, rowErrors ...conciliation.RowError) UploadSucceeded {
	return UploadSucceeded{Result: conciliation.UploadResult{
		SessionToken: token,
		Summary: conciliation.BatchSummary{
			ReceivablesCount: receivables,
			PaymentsCount:    payments,
			Errors:           rowErrors,
		},
	}}
}

func mustTransition(t *testing.T, s Session, events ...Event) Session {
	t.Helper()
	for _, e := range events {
		var err error
		s, err = Transition(s, e)
		require.NoError(t, err, EventName(e))
	}
	return s
}

func TestTransition_FirstUpload(t *testing.T) {
	s := mustTransition(t, Session{}, uploaded("tok-1", 10, 0))

	assert.Equal(t, StepAwaitingSecondFile, s.Step)
	assert.Equal(t, "tok-1", s.Token)
	assert.Equal(t, 10, s.ReceivablesCount)
	assert.Equal(t, 0, s.PaymentsCount)
	assert.Equal(t, 1, s.Uploads)
}

func TestTransition_TwoUploadsAccumulate(t *testing.T) {
	s := mustTransition(t, Session{},
		uploaded("tok-1", 10, 0),
		uploaded("tok-1", 0, 8),
	)

	assert.Equal(t, StepReadyToReconcile, s.Step)
	assert.Equal(t, "tok-1", s.Token)
	assert.Equal(t, 10, s.ReceivablesCount)
	assert.Equal(t, 8, s.PaymentsCount)
	assert.Equal(t, 2, s.Uploads)
}

func TestTransition_SecondUploadAddsToBothCounts(t *testing.T) {
	s := mustTransition(t, Session{},
		uploaded("tok", 3, 2),
		uploaded("tok", 4, 5),
	)
	assert.Equal(t, 7, s.ReceivablesCount)
	assert.Equal(t, 7, s.PaymentsCount)
}

func TestTransition_SkipKeepsFirstCounts(t *testing.T) {
	s := mustTransition(t, Session{}, uploaded("tok", 10, 3), Skipped{})

	assert.Equal(t, StepReadyToReconcile, s.Step)
	assert.Equal(t, 10, s.ReceivablesCount)
	assert.Equal(t, 3, s.PaymentsCount)
	assert.Equal(t, 1, s.Uploads)
}

func TestTransition_UploadFailureKeepsState(t *testing.T) {
	t.Run("in NoFile", func(t *testing.T) {
		s := mustTransition(t, Session{}, UploadFailed{Message: "bad file"})
		assert.Equal(t, StepNoFile, s.Step)
		assert.False(t, s.HasToken())
		assert.Equal(t, 0, s.ReceivablesCount)
		assert.Equal(t, "bad file", s.LastError)
	})

	t.Run("in AwaitingSecondFile", func(t *testing.T) {
		s := mustTransition(t, Session{}, uploaded("tok", 5, 0), UploadFailed{Message: "bad file"})
		assert.Equal(t, StepAwaitingSecondFile, s.Step)
		assert.Equal(t, "tok", s.Token)
		assert.Equal(t, 5, s.ReceivablesCount)
		assert.Equal(t, "bad file", s.LastError)

		// a later success clears the message
		s = mustTransition(t, s, uploaded("tok", 0, 1))
		assert.Empty(t, s.LastError)
	})
}

func TestTransition_TokenIsImmutable(t *testing.T) {
	s := mustTransition(t, Session{}, uploaded("tok-1", 1, 0))

	next, err := Transition(s, uploaded("tok-2", 0, 1))
	assert.ErrorIs(t, err, ErrTokenChanged)
	assert.Equal(t, s, next)

	// an empty token on the second upload means "same session"
	next, err = Transition(s, uploaded("", 0, 1))
	require.NoError(t, err)
	assert.Equal(t, "tok-1", next.Token)
}

func TestTransition_FirstUploadNeedsToken(t *testing.T) {
	next, err := Transition(Session{}, uploaded("", 1, 0))
	assert.ErrorIs(t, err, ErrMissingToken)
	assert.Equal(t, Session{}, next)
}

func TestTransition_RejectsNegativeCounts(t *testing.T) {
	_, err := Transition(Session{}, uploaded("tok", -1, 0))
	assert.ErrorIs(t, err, conciliation.ErrInvalidPayload)
}

func TestTransition_RowErrorsDoNotBlock(t *testing.T) {
	s := mustTransition(t, Session{}, uploaded("tok", 9, 0, conciliation.RowError{Row: 3, Message: "invalid date"}))

	assert.Equal(t, StepAwaitingSecondFile, s.Step)
	require.Len(t, s.RowErrors, 1)
	assert.Equal(t, 3, s.RowErrors[0].Row)

	s = mustTransition(t, s, uploaded("tok", 0, 2))
	assert.Empty(t, s.RowErrors)
}

func TestTransition_Conciliation(t *testing.T) {
	ready := mustTransition(t, Session{}, uploaded("tok", 10, 0), uploaded("tok", 0, 8))

	t.Run("failure stays ready with token and counts", func(t *testing.T) {
		s := mustTransition(t, ready, ConciliationFailed{Message: "Session not found"})
		assert.Equal(t, StepReadyToReconcile, s.Step)
		assert.Equal(t, "tok", s.Token)
		assert.Equal(t, 10, s.ReceivablesCount)
		assert.Equal(t, 8, s.PaymentsCount)
		assert.Nil(t, s.Result)
		assert.Equal(t, "Session not found", s.LastError)
	})

	t.Run("success stores the payload", func(t *testing.T) {
		s := mustTransition(t, ready, ConciliationSucceeded{Result: conciliation.Result{RunID: "run-1"}})
		assert.Equal(t, StepShowingResults, s.Step)
		require.NotNil(t, s.Result)
		assert.Equal(t, "run-1", s.Result.RunID)
	})
}

func TestTransition_ResetFromResults(t *testing.T) {
	s := mustTransition(t, Session{},
		uploaded("tok", 10, 0),
		uploaded("tok", 0, 8),
		ConciliationSucceeded{Result: conciliation.Result{RunID: "run-1"}},
		Reset{},
	)

	assert.Equal(t, Session{}, s)
	assert.Equal(t, StepNoFile, s.Step)
	assert.False(t, s.HasToken())
	assert.Equal(t, 0, s.ReceivablesCount)
	assert.Equal(t, 0, s.PaymentsCount)
	assert.Nil(t, s.Result)
}

func TestTransition_InvalidPairs(t *testing.T) {
	noFile := Session{}
	awaiting := mustTransition(t, Session{}, uploaded("tok", 1, 0))
	ready := mustTransition(t, awaiting, Skipped{})
	showing := mustTransition(t, ready, ConciliationSucceeded{})

	tests := []struct {
		name  string
		state Session
		event Event
	}{
		{"skip without a first upload", noFile, Skipped{}},
		{"conciliate before uploads", noFile, ConciliationSucceeded{}},
		{"conciliation failure before uploads", noFile, ConciliationFailed{}},
		{"conciliate while awaiting second file", awaiting, ConciliationSucceeded{}},
		{"third upload", ready, uploaded("tok", 1, 1)},
		{"upload failure once ready", ready, UploadFailed{}},
		{"skip twice", ready, Skipped{}},
		{"upload after results", showing, uploaded("tok", 1, 1)},
		{"conciliate twice", showing, ConciliationSucceeded{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := Transition(tt.state, tt.event)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, tt.state, next)
		})
	}
}

type bogusEvent struct{}

func (bogusEvent) eventName() string { return "bogus" }

func TestTransition_UnknownEvent(t *testing.T) {
	_, err := Transition(Session{}, bogusEvent{})
	assert.ErrorIs(t, err, ErrUnknownEvent)

	_, err = Transition(Session{}, nil)
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestStep_TextRoundTrip(t *testing.T) {
	for step := range stepNames {
		text, err := step.MarshalText()
		require.NoError(t, err)

		var parsed Step
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, step, parsed)
	}

	_, err := ParseStep("done")
	assert.Error(t, err)
}

func TestSession_CloneDoesNotShareRowErrors(t *testing.T) {
	s := Session{RowErrors: []conciliation.RowError{{Row: 1, Message: "x"}}}
	c := s.Clone()
	c.RowErrors[0].Message = "changed"
	assert.Equal(t, "x", s.RowErrors[0].Message)
}
