package repository

import (
	"time"

	"seller-finance-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BankTransactionRepository struct {
	db *gorm.DB
}

func NewBankTransactionRepository(db *gorm.DB) *BankTransactionRepository {
	return &BankTransactionRepository{db: db}
}

func (r *BankTransactionRepository) DB() *gorm.DB {
	return r.db
}

// InsertIgnoreConflicts writes one chunk with insert-or-ignore semantics on
// the (owner_id, content_hash) unique key. Colliding rows are dropped, never
// overwritten, never an error.
func (r *BankTransactionRepository) InsertIgnoreConflicts(rows []models.BankTransaction) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "content_hash"}},
		DoNothing: true,
	}).Create(&rows).Error
}

// CountByBatch is the live count the writer trusts over the insert echo.
func (r *BankTransactionRepository) CountByBatch(batchID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.Model(&models.BankTransaction{}).
		Where("import_batch_id = ?", batchID).
		Count(&n).Error
	return n, err
}

// CountByBatches counts live rows across a set of batches, for the
// fingerprint-tuple duplicate probe.
func (r *BankTransactionRepository) CountByBatches(batchIDs []uuid.UUID) (int64, error) {
	if len(batchIDs) == 0 {
		return 0, nil
	}
	var n int64
	err := r.db.Model(&models.BankTransaction{}).
		Where("import_batch_id IN ?", batchIDs).
		Count(&n).Error
	return n, err
}

func (r *BankTransactionRepository) GetByID(id uuid.UUID) (*models.BankTransaction, error) {
	var tx models.BankTransaction
	if err := r.db.First(&tx, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

// FindUnmatchedInRange returns statement lines in the window that carry no
// active match link.
func (r *BankTransactionRepository) FindUnmatchedInRange(ownerID string, from, to time.Time) ([]models.BankTransaction, error) {
	var txs []models.BankTransaction
	linked := r.db.Model(&models.MatchLink{}).
		Select("bank_transaction_id").
		Where("owner_id = ? AND active = ?", ownerID, true)

	err := r.db.
		Where("owner_id = ?", ownerID).
		Where("transaction_date >= ? AND transaction_date <= ?", from, to).
		Where("status = ?", models.TxUnmatched).
		Where("id NOT IN (?)", linked).
		Order("transaction_date ASC").
		Find(&txs).Error
	return txs, err
}

func (r *BankTransactionRepository) UpdateStatus(id uuid.UUID, status string) error {
	return r.db.Model(&models.BankTransaction{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// DeleteByScopeAndRange purges statement lines for one account inside the
// inclusive date window. Returns the purged row count for batch audit.
func (r *BankTransactionRepository) DeleteByScopeAndRange(ownerID, scopeKey string, from, to time.Time) (int64, error) {
	res := r.db.
		Where("owner_id = ? AND scope_key = ?", ownerID, scopeKey).
		Where("transaction_date >= ? AND transaction_date <= ?", from, to).
		Delete(&models.BankTransaction{})
	return res.RowsAffected, res.Error
}

// DeleteByScope purges every statement line for one account.
func (r *BankTransactionRepository) DeleteByScope(ownerID, scopeKey string) (int64, error) {
	res := r.db.
		Where("owner_id = ? AND scope_key = ?", ownerID, scopeKey).
		Delete(&models.BankTransaction{})
	return res.RowsAffected, res.Error
}

// ListByBatch pages statement lines with a cursor, optionally filtered by
// status.
func (r *BankTransactionRepository) ListByBatch(batchID uuid.UUID, status, cursor string, limit int) ([]models.BankTransaction, string, bool, error) {
	var txs []models.BankTransaction
	query := r.db.
		Where("import_batch_id = ?", batchID).
		Order("id ASC").
		Limit(limit + 1)

	if status != "" && status != "all" {
		query = query.Where("status = ?", status)
	}
	if cursor != "" {
		query = query.Where("id > ?", cursor)
	}

	if err := query.Find(&txs).Error; err != nil {
		return nil, "", false, err
	}

	hasMore := false
	var nextCursor string
	if len(txs) > limit {
		hasMore = true
		nextCursor = txs[limit-1].ID.String()
		txs = txs[:limit]
	}
	return txs, nextCursor, hasMore, nil
}

type BatchStatRow struct {
	Status string
	Count  int64
	Sum    float64
}

// StatsByBatch rolls up count and amount per status for one batch.
func (r *BankTransactionRepository) StatsByBatch(batchID uuid.UUID) ([]BatchStatRow, error) {
	var rows []BatchStatRow
	err := r.db.Model(&models.BankTransaction{}).
		Where("import_batch_id = ?", batchID).
		Select("status, COUNT(*) as count, COALESCE(SUM(amount),0) as sum").
		Group("status").
		Scan(&rows).Error
	return rows, err
}
