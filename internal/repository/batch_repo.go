package repository

import (
	"errors"
	"time"

	"seller-finance-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ImportBatchRepository struct {
	db *gorm.DB
}

func NewImportBatchRepository(db *gorm.DB) *ImportBatchRepository {
	return &ImportBatchRepository{db: db}
}

// Expose DB if needed
func (r *ImportBatchRepository) DB() *gorm.DB {
	return r.db
}

func (r *ImportBatchRepository) Create(batch *models.ImportBatch) error {
	return r.db.Create(batch).Error
}

func (r *ImportBatchRepository) GetByID(id uuid.UUID) (*models.ImportBatch, error) {
	var batch models.ImportBatch
	if err := r.db.First(&batch, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

// FindCompletedByFingerprint returns the completed batch for the fingerprint
// tuple, if one exists. A zero-insert reimport can leave more than one
// completed row; the one actually holding data wins.
func (r *ImportBatchRepository) FindCompletedByFingerprint(fileHash, reportKind, scopeKey, ownerID string) (*models.ImportBatch, error) {
	var batch models.ImportBatch
	err := r.db.
		Where("source_file_hash = ? AND report_kind = ? AND scope_key = ? AND owner_id = ?",
			fileHash, reportKind, scopeKey, ownerID).
		Where("status = ?", models.BatchCompleted).
		Order("inserted_count DESC, created_at DESC").
		First(&batch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

// IDsByFingerprint returns every batch id ever opened for the fingerprint
// tuple, any status. Used to count live rows across the tuple's whole
// history, not just its newest completed batch.
func (r *ImportBatchRepository) IDsByFingerprint(fileHash, reportKind, scopeKey, ownerID string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.Model(&models.ImportBatch{}).
		Where("source_file_hash = ? AND report_kind = ? AND scope_key = ? AND owner_id = ?",
			fileHash, reportKind, scopeKey, ownerID).
		Pluck("id", &ids).Error
	return ids, err
}

// FindActiveSince returns a batch for the same fingerprint tuple still
// pending or processing and opened after the cutoff. Used as the advisory
// in-progress guard.
func (r *ImportBatchRepository) FindActiveSince(fileHash, reportKind, scopeKey, ownerID string, cutoff time.Time) (*models.ImportBatch, error) {
	var batch models.ImportBatch
	err := r.db.
		Where("source_file_hash = ? AND report_kind = ? AND scope_key = ? AND owner_id = ?",
			fileHash, reportKind, scopeKey, ownerID).
		Where("status IN ? AND created_at > ?", []string{models.BatchPending, models.BatchProcessing}, cutoff).
		First(&batch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

// MarkProcessing flips a pending batch to processing once the purge is done
// and the data write is about to start.
func (r *ImportBatchRepository) MarkProcessing(id uuid.UUID) error {
	return r.db.Model(&models.ImportBatch{}).
		Where("id = ?", id).
		Update("status", models.BatchProcessing).Error
}

// Finalize sets the terminal state and final counts in one update. Metadata
// carries the purge audit for replace-mode batches; nil leaves it untouched.
func (r *ImportBatchRepository) Finalize(id uuid.UUID, status string, inserted, skipped, rejected, deleted int, errMsg string, metadata datatypes.JSON) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":         status,
		"inserted_count": inserted,
		"skipped_count":  skipped,
		"rejected_count": rejected,
		"deleted_count":  deleted,
		"error_message":  errMsg,
		"completed_at":   now,
	}
	if metadata != nil {
		updates["metadata"] = metadata
	}
	return r.db.Model(&models.ImportBatch{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// MarkReplaced flips a superseded batch out of completed so the fingerprint
// invariant holds after a reimport.
func (r *ImportBatchRepository) MarkReplaced(id uuid.UUID) error {
	return r.db.Model(&models.ImportBatch{}).
		Where("id = ?", id).
		Update("status", models.BatchReplaced).Error
}
