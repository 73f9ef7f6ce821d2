package repository

import (
	"time"

	"seller-finance-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FinancialRecordRepository struct {
	db *gorm.DB
}

func NewFinancialRecordRepository(db *gorm.DB) *FinancialRecordRepository {
	return &FinancialRecordRepository{db: db}
}

func (r *FinancialRecordRepository) DB() *gorm.DB {
	return r.db
}

// InsertIgnoreConflicts writes one chunk with insert-or-ignore semantics on
// the (owner_id, record_type, content_hash) unique key.
func (r *FinancialRecordRepository) InsertIgnoreConflicts(rows []models.FinancialRecord) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "record_type"}, {Name: "content_hash"}},
		DoNothing: true,
	}).Create(&rows).Error
}

func (r *FinancialRecordRepository) CountByBatch(batchID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.Model(&models.FinancialRecord{}).
		Where("import_batch_id = ?", batchID).
		Count(&n).Error
	return n, err
}

// CountByBatches counts live rows across a set of batches, for the
// fingerprint-tuple duplicate probe.
func (r *FinancialRecordRepository) CountByBatches(batchIDs []uuid.UUID) (int64, error) {
	if len(batchIDs) == 0 {
		return 0, nil
	}
	var n int64
	err := r.db.Model(&models.FinancialRecord{}).
		Where("import_batch_id IN ?", batchIDs).
		Count(&n).Error
	return n, err
}

func (r *FinancialRecordRepository) GetByID(id uuid.UUID) (*models.FinancialRecord, error) {
	var rec models.FinancialRecord
	if err := r.db.First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *FinancialRecordRepository) FindByBatch(batchID uuid.UUID) ([]models.FinancialRecord, error) {
	var recs []models.FinancialRecord
	err := r.db.Where("import_batch_id = ?", batchID).Find(&recs).Error
	return recs, err
}

// FindUnmatchedInRange returns records of the matchable types in the window
// that carry no active match link.
func (r *FinancialRecordRepository) FindUnmatchedInRange(ownerID string, types []string, from, to time.Time) ([]models.FinancialRecord, error) {
	var recs []models.FinancialRecord
	linked := r.db.Model(&models.MatchLink{}).
		Select("entity_id").
		Where("owner_id = ? AND active = ?", ownerID, true)

	err := r.db.
		Where("owner_id = ?", ownerID).
		Where("record_type IN ?", types).
		Where("occurred_at >= ? AND occurred_at <= ?", from, to).
		Where("id NOT IN (?)", linked).
		Order("occurred_at ASC").
		Find(&recs).Error
	return recs, err
}

// FindForecastsByExternalIDs bulk-fetches forecast rows whose external id
// appears in the settlement batch. One query; platform disambiguation happens
// in memory because forecast volumes can be large but the id list is bounded
// by the batch size.
func (r *FinancialRecordRepository) FindForecastsByExternalIDs(ownerID string, externalIDs []string) ([]models.FinancialRecord, error) {
	var recs []models.FinancialRecord
	if len(externalIDs) == 0 {
		return recs, nil
	}
	err := r.db.
		Where("owner_id = ? AND record_type = ?", ownerID, models.RecordForecast).
		Where("external_id IN ?", externalIDs).
		Find(&recs).Error
	return recs, err
}

// BulkMarkSettled flips every id to settled in a single update. Sets one
// shared settled_at; per-row source timestamps are not carried (bulk update
// trade-off).
func (r *FinancialRecordRepository) BulkMarkSettled(ids []uuid.UUID, settledAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.Model(&models.FinancialRecord{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":     models.RecordSettled,
			"settled_at": settledAt,
		})
	return res.RowsAffected, res.Error
}

// DeleteByTypeAndRange purges records of one type inside the inclusive
// window, for replace_range imports of non-bank reports.
func (r *FinancialRecordRepository) DeleteByTypeAndRange(ownerID, recordType string, from, to time.Time) (int64, error) {
	res := r.db.
		Where("owner_id = ? AND record_type = ?", ownerID, recordType).
		Where("occurred_at >= ? AND occurred_at <= ?", from, to).
		Delete(&models.FinancialRecord{})
	return res.RowsAffected, res.Error
}

// DeleteByType purges every record of one type for the owner.
func (r *FinancialRecordRepository) DeleteByType(ownerID, recordType string) (int64, error) {
	res := r.db.
		Where("owner_id = ? AND record_type = ?", ownerID, recordType).
		Delete(&models.FinancialRecord{})
	return res.RowsAffected, res.Error
}
