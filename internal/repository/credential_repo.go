package repository

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"receivables-conciliation-backend/internal/models"
)

type CredentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Upsert stores the credential, refreshing the user record when the token
// is already known.
func (r *CredentialRepository) Upsert(c *models.Credential) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "user_record", "updated_at"}),
	}).Create(c).Error
}

func (r *CredentialRepository) GetByToken(token string) (*models.Credential, error) {
	var c models.Credential
	err := r.db.Where("token = ?", token).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CredentialRepository) DeleteByToken(token string) error {
	res := r.db.Where("token = ?", token).Delete(&models.Credential{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
