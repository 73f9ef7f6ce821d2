package repository

import (
	"errors"
	"time"

	"seller-finance-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MatchLinkRepository struct {
	db *gorm.DB
}

func NewMatchLinkRepository(db *gorm.DB) *MatchLinkRepository {
	return &MatchLinkRepository{db: db}
}

func (r *MatchLinkRepository) Create(link *models.MatchLink) error {
	return r.db.Create(link).Error
}

// ActiveByBankTransaction returns the active link on a bank transaction, nil
// if unlinked.
func (r *MatchLinkRepository) ActiveByBankTransaction(bankTxID uuid.UUID) (*models.MatchLink, error) {
	var link models.MatchLink
	err := r.db.
		Where("bank_transaction_id = ? AND active = ?", bankTxID, true).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

// ActiveByEntity returns the active link on an internal entity, nil if
// unlinked.
func (r *MatchLinkRepository) ActiveByEntity(entityID uuid.UUID) (*models.MatchLink, error) {
	var link models.MatchLink
	err := r.db.
		Where("entity_id = ? AND active = ?", entityID, true).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

// Release deactivates a link, keeping the row for audit.
func (r *MatchLinkRepository) Release(id uuid.UUID) error {
	now := time.Now()
	return r.db.Model(&models.MatchLink{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"active":      false,
			"released_at": now,
		}).Error
}
