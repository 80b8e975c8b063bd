package repository

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"receivables-conciliation-backend/internal/models"
)

type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) Create(run *models.ConciliationRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	return r.db.Create(run).Error
}

func (r *RunRepository) GetByID(id uuid.UUID) (*models.ConciliationRun, error) {
	var run models.ConciliationRun
	err := r.db.First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListByWorkflow returns run headers newest first. Payloads are left out.
func (r *RunRepository) ListByWorkflow(workflowID uuid.UUID) ([]models.ConciliationRun, error) {
	var runs []models.ConciliationRun
	err := r.db.
		Omit("payload").
		Where("workflow_id = ?", workflowID).
		Order("created_at DESC").
		Find(&runs).Error
	return runs, err
}
