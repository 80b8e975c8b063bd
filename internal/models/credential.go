package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Credential is one auth token issued by the remote service together with
// the user record it was issued for. Each signed-in client holds its own
// token, so one email may have several rows.
type Credential struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email      string    `gorm:"index"`
	Token      string    `gorm:"uniqueIndex"`
	UserRecord datatypes.JSON
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
