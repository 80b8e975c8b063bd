package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ConciliationRun stores one successful conciliation with its full payload.
type ConciliationRun struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey"`
	WorkflowID           uuid.UUID `gorm:"type:uuid;index"`
	RemoteRunID          string
	TotalReceivables     int
	TotalPayments        int
	MatchedCount         int
	UnmatchedReceivables int
	UnmatchedPayments    int
	MatchRate            string
	Payload              datatypes.JSON
	CreatedAt            time.Time
}
