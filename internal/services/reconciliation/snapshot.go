package reconciliation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"receivables-conciliation-backend/internal/conciliation"
	"receivables-conciliation-backend/internal/models"
	"receivables-conciliation-backend/internal/repository"
	"receivables-conciliation-backend/internal/workflow"
)

// persist returns the observer that writes every applied transition of
// workflow id: the snapshot, the audit entry and, on a successful
// conciliation, the run with its payload.
func (s *ReconciliationService) persist(id uuid.UUID, logger *slog.Logger) workflow.Observer {
	return func(from, to workflow.Session, ev workflow.Event) {
		s.statsCache.Delete(id)

		s.persistMu.Lock()
		defer s.persistMu.Unlock()

		rec, err := s.workflows.GetByID(id)
		if errors.Is(err, repository.ErrNotFound) {
			rec = &models.Workflow{ID: id}
		} else if err != nil {
			logger.Error("failed to load workflow snapshot", "error", err)
			return
		}

		switch e := ev.(type) {
		case workflow.ConciliationSucceeded:
			run, err := newRun(id, &e.Result)
			if err == nil {
				err = s.runs.Create(run)
			}
			if err != nil {
				logger.Error("failed to store conciliation run", "error", err)
			} else {
				rec.LatestRunID = &run.ID
			}
		case workflow.Reset:
			rec.LatestRunID = nil
		}

		if err := applySession(rec, to); err != nil {
			logger.Error("failed to encode workflow snapshot", "error", err)
			return
		}
		if err := s.workflows.Save(rec); err != nil {
			logger.Error("failed to save workflow snapshot", "error", err)
			return
		}

		entry := &models.TransitionLog{
			WorkflowID: id,
			Event:      workflow.EventName(ev),
			FromStep:   from.Step.String(),
			ToStep:     to.Step.String(),
			Message:    to.LastError,
		}
		if err := s.workflows.AppendTransition(entry); err != nil {
			logger.Error("failed to append transition", "error", err)
		}
	}
}

func applySession(rec *models.Workflow, s workflow.Session) error {
	rec.Step = s.Step.String()
	rec.SessionToken = s.Token
	rec.ReceivablesCount = s.ReceivablesCount
	rec.PaymentsCount = s.PaymentsCount
	rec.Uploads = s.Uploads
	rec.LastError = s.LastError

	rec.RowErrors = nil
	if len(s.RowErrors) > 0 {
		raw, err := json.Marshal(s.RowErrors)
		if err != nil {
			return err
		}
		rec.RowErrors = datatypes.JSON(raw)
	}
	return nil
}

func newRun(workflowID uuid.UUID, res *conciliation.Result) (*models.ConciliationRun, error) {
	payload, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode conciliation result: %w", err)
	}
	return &models.ConciliationRun{
		ID:                   uuid.New(),
		WorkflowID:           workflowID,
		RemoteRunID:          res.RunID,
		TotalReceivables:     res.Summary.TotalReceivables,
		TotalPayments:        res.Summary.TotalPayments,
		MatchedCount:         res.Summary.MatchedCount,
		UnmatchedReceivables: res.Summary.UnmatchedReceivablesCount,
		UnmatchedPayments:    res.Summary.UnmatchedPaymentsCount,
		MatchRate:            res.Summary.MatchRate.String(),
		Payload:              datatypes.JSON(payload),
	}, nil
}

// restoreSession rebuilds a session from its stored snapshot. A workflow
// that was showing results whose run can no longer be read drops back to
// ready-to-reconcile so the operator can run it again.
func (s *ReconciliationService) restoreSession(rec *models.Workflow) (workflow.Session, error) {
	step, err := workflow.ParseStep(rec.Step)
	if err != nil {
		return workflow.Session{}, fmt.Errorf("workflow %s: %w", rec.ID, err)
	}

	session := workflow.Session{
		Step:             step,
		Token:            rec.SessionToken,
		ReceivablesCount: rec.ReceivablesCount,
		PaymentsCount:    rec.PaymentsCount,
		Uploads:          rec.Uploads,
		LastError:        rec.LastError,
	}
	if len(rec.RowErrors) > 0 {
		if err := json.Unmarshal(rec.RowErrors, &session.RowErrors); err != nil {
			return workflow.Session{}, fmt.Errorf("workflow %s row errors: %w", rec.ID, err)
		}
	}

	if step != workflow.StepShowingResults {
		return session, nil
	}

	res, err := s.loadRun(rec.LatestRunID)
	if err != nil {
		s.logger.Warn("stored results unavailable, conciliation must be run again",
			"workflow_id", rec.ID, "error", err)
		session.Step = workflow.StepReadyToReconcile
		return session, nil
	}
	session.Result = res
	return session, nil
}

func (s *ReconciliationService) loadRun(id *uuid.UUID) (*conciliation.Result, error) {
	if id == nil {
		return nil, repository.ErrNotFound
	}
	run, err := s.runs.GetByID(*id)
	if err != nil {
		return nil, err
	}
	var res conciliation.Result
	if err := json.Unmarshal(run.Payload, &res); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", run.ID, err)
	}
	return &res, nil
}
