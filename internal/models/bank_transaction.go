package models

import (
	"time"

	"github.com/google/uuid"
)

// Bank transaction statuses.
const (
	TxUnmatched = "unmatched"
	TxMatched   = "matched"
)

// BankTransaction is one bank statement line. ContentHash is the line-level
// dedup key: two rows with the same business content collide no matter which
// file they arrived in.
type BankTransaction struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerID         string    `gorm:"index;uniqueIndex:idx_bank_tx_content"`
	ScopeKey        string    `gorm:"index"` // bank account the statement belongs to
	ImportBatchID   uuid.UUID `gorm:"index"`
	TransactionDate time.Time `gorm:"column:transaction_date;index"`
	Description     string
	Amount          float64 `gorm:"index"` // signed: deposits positive, withdrawals negative
	ReferenceNumber string
	ContentHash     string `gorm:"uniqueIndex:idx_bank_tx_content"`
	Status          string `gorm:"index"`
	CreatedAt       time.Time
}
