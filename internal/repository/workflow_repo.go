// Package repository persists workflows, conciliation runs, the transition
// log and stored credentials through gorm.
package repository

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"receivables-conciliation-backend/internal/models"
)

var ErrNotFound = errors.New("record not found")

type WorkflowRepository struct {
	db *gorm.DB
}

func NewWorkflowRepository(db *gorm.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

func (r *WorkflowRepository) Create(w *models.Workflow) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return r.db.Create(w).Error
}

// GetByID fetch a single workflow by ID
func (r *WorkflowRepository) GetByID(id uuid.UUID) (*models.Workflow, error) {
	var w models.Workflow
	err := r.db.First(&w, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Save writes the full snapshot, inserting it if it does not exist yet.
func (r *WorkflowRepository) Save(w *models.Workflow) error {
	return r.db.Save(w).Error
}

// List returns workflows most recently updated first, with an optional
// step filter. "all" or "" means no filter.
func (r *WorkflowRepository) List(step string, limit int) ([]models.Workflow, error) {
	var workflows []models.Workflow

	q := r.db.Model(&models.Workflow{})
	if step != "" && step != "all" {
		q = q.Where("step = ?", step)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Order("updated_at DESC").Find(&workflows).Error
	return workflows, err
}

func (r *WorkflowRepository) AppendTransition(entry *models.TransitionLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.Create(entry).Error
}

// ListTransitions returns the audit trail of one workflow, oldest first.
func (r *WorkflowRepository) ListTransitions(workflowID uuid.UUID) ([]models.TransitionLog, error) {
	var entries []models.TransitionLog
	err := r.db.
		Where("workflow_id = ?", workflowID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}
