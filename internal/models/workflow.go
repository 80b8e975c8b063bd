package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Workflow is the persisted snapshot of one operator workflow.
type Workflow struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	Step             string    `gorm:"index"`
	SessionToken     string
	ReceivablesCount int
	PaymentsCount    int
	Uploads          int
	LastError        string
	RowErrors        datatypes.JSON
	LatestRunID      *uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
