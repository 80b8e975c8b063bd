package models

import (
	"time"

	"github.com/google/uuid"
)

type TransitionLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	WorkflowID uuid.UUID `gorm:"type:uuid;index"`
	Event      string
	FromStep   string
	ToStep     string
	Message    string
	CreatedAt  time.Time
}
