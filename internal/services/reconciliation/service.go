// Package reconciliation hosts the operator workflows: one orchestrator per
// workflow, persisted after every transition so a restart resumes where the
// operator left off.
package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"receivables-conciliation-backend/internal/conciliation"
	"receivables-conciliation-backend/internal/models"
	"receivables-conciliation-backend/internal/repository"
	"receivables-conciliation-backend/internal/workflow"
)

var (
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrNoResults        = errors.New("no conciliation results yet")
)

// Gateway is everything the service needs from the remote service.
type Gateway interface {
	workflow.Gateway
	ExportURL(sessionToken string) string
}

type ReconciliationService struct {
	gateway   Gateway
	workflows *repository.WorkflowRepository
	runs      *repository.RunRepository
	logger    *slog.Logger

	sessions   sync.Map // workflow ID -> *workflow.Orchestrator
	statsCache sync.Map // workflow ID -> cachedStats
	loadMu     sync.Mutex
	persistMu  sync.Mutex
}

func NewReconciliationService(
	gateway Gateway,
	workflows *repository.WorkflowRepository,
	runs *repository.RunRepository,
	logger *slog.Logger,
) *ReconciliationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconciliationService{
		gateway:   gateway,
		workflows: workflows,
		runs:      runs,
		logger:    logger.With("component", "reconciliation"),
	}
}

// StartWorkflow creates a fresh workflow in the no-file step.
func (s *ReconciliationService) StartWorkflow() (uuid.UUID, workflow.Session, error) {
	rec := &models.Workflow{
		ID:   uuid.New(),
		Step: workflow.StepNoFile.String(),
	}
	if err := s.workflows.Create(rec); err != nil {
		return uuid.Nil, workflow.Session{}, fmt.Errorf("create workflow: %w", err)
	}

	o := s.newOrchestrator(rec.ID, workflow.Session{})
	s.sessions.Store(rec.ID, o)

	s.logger.Info("workflow started", "workflow_id", rec.ID)
	return rec.ID, o.Session(), nil
}

// State returns the current session of workflow id.
func (s *ReconciliationService) State(id uuid.UUID) (workflow.Session, error) {
	o, err := s.orchestrator(id)
	if err != nil {
		return workflow.Session{}, err
	}
	return o.Session(), nil
}

// Busy reports whether a gateway call is in flight for id.
func (s *ReconciliationService) Busy(id uuid.UUID) (bool, error) {
	o, err := s.orchestrator(id)
	if err != nil {
		return false, err
	}
	return o.Busy(), nil
}

// SessionToken is the remote session token of id, "" before the first upload.
func (s *ReconciliationService) SessionToken(id uuid.UUID) (string, error) {
	o, err := s.orchestrator(id)
	if err != nil {
		return "", err
	}
	return o.Session().Token, nil
}

func (s *ReconciliationService) Upload(ctx context.Context, id uuid.UUID, file conciliation.File) (workflow.Session, error) {
	o, err := s.orchestrator(id)
	if err != nil {
		return workflow.Session{}, err
	}
	return o.Upload(ctx, file)
}

func (s *ReconciliationService) Skip(id uuid.UUID) (workflow.Session, error) {
	o, err := s.orchestrator(id)
	if err != nil {
		return workflow.Session{}, err
	}
	return o.Skip()
}

func (s *ReconciliationService) Conciliate(ctx context.Context, id uuid.UUID) (workflow.Session, error) {
	o, err := s.orchestrator(id)
	if err != nil {
		return workflow.Session{}, err
	}
	return o.Conciliate(ctx)
}

func (s *ReconciliationService) Reset(id uuid.UUID) (workflow.Session, error) {
	o, err := s.orchestrator(id)
	if err != nil {
		return workflow.Session{}, err
	}
	return o.Reset(), nil
}

// WorkflowSummary is one line of the workflow listing.
type WorkflowSummary struct {
	ID               uuid.UUID `json:"workflow_id"`
	Step             string    `json:"step"`
	ReceivablesCount int       `json:"receivables_count"`
	PaymentsCount    int       `json:"payments_count"`
	Uploads          int       `json:"uploads"`
	LastError        string    `json:"last_error,omitempty"`
	HasResults       bool      `json:"has_results"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ListWorkflows returns stored workflows, most recently updated first.
// A nil step lists every step; limit <= 0 means no limit.
func (s *ReconciliationService) ListWorkflows(step *workflow.Step, limit int) ([]WorkflowSummary, error) {
	filter := ""
	if step != nil {
		filter = step.String()
	}
	recs, err := s.workflows.List(filter, limit)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}

	out := make([]WorkflowSummary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, WorkflowSummary{
			ID:               rec.ID,
			Step:             rec.Step,
			ReceivablesCount: rec.ReceivablesCount,
			PaymentsCount:    rec.PaymentsCount,
			Uploads:          rec.Uploads,
			LastError:        rec.LastError,
			HasResults:       rec.LatestRunID != nil,
			UpdatedAt:        rec.UpdatedAt,
		})
	}
	return out, nil
}

// Transitions returns the audit trail of workflow id, oldest first.
func (s *ReconciliationService) Transitions(id uuid.UUID) ([]models.TransitionLog, error) {
	if _, err := s.orchestrator(id); err != nil {
		return nil, err
	}
	return s.workflows.ListTransitions(id)
}

// Runs returns the stored conciliation runs of workflow id, newest first.
func (s *ReconciliationService) Runs(id uuid.UUID) ([]models.ConciliationRun, error) {
	if _, err := s.orchestrator(id); err != nil {
		return nil, err
	}
	return s.runs.ListByWorkflow(id)
}

// orchestrator returns the live orchestrator for id, restoring it from the
// database on first use.
func (s *ReconciliationService) orchestrator(id uuid.UUID) (*workflow.Orchestrator, error) {
	if val, ok := s.sessions.Load(id); ok {
		return val.(*workflow.Orchestrator), nil
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	if val, ok := s.sessions.Load(id); ok {
		return val.(*workflow.Orchestrator), nil
	}

	rec, err := s.workflows.GetByID(id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrWorkflowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load workflow %s: %w", id, err)
	}

	snapshot, err := s.restoreSession(rec)
	if err != nil {
		return nil, err
	}

	o := s.newOrchestrator(id, snapshot)
	s.sessions.Store(id, o)
	s.logger.Info("workflow restored", "workflow_id", id, "step", snapshot.Step)
	return o, nil
}

func (s *ReconciliationService) newOrchestrator(id uuid.UUID, snapshot workflow.Session) *workflow.Orchestrator {
	logger := s.logger.With("workflow_id", id)
	return workflow.Restore(s.gateway, snapshot,
		workflow.WithLogger(logger),
		workflow.WithObserver(s.persist(id, logger)),
	)
}
