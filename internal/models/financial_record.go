package models

import (
	"time"

	"github.com/google/uuid"
)

// Record types and which money direction they represent.
const (
	RecordSettlement  = "settlement"   // inflow
	RecordForecast    = "forecast"     // inflow, not yet settled
	RecordExpense     = "expense"      // outflow
	RecordWalletTopup = "wallet_topup" // outflow
	RecordAds         = "ads"          // outflow
)

// Financial record statuses.
const (
	RecordActive    = "active"
	RecordUnsettled = "unsettled"
	RecordSettled   = "settled"
)

// FinancialRecord is an internally generated monetary event: a marketplace
// settlement, a forecast (on-hold) settlement, an expense payment, a wallet
// top-up or an ads charge. ContentHash is unique within (owner, record type)
// and is derived only from fields the user can reproduce by re-exporting the
// same report.
type FinancialRecord struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerID       string    `gorm:"index;uniqueIndex:idx_record_content"`
	RecordType    string    `gorm:"index;uniqueIndex:idx_record_content"`
	ImportBatchID uuid.UUID `gorm:"index"`
	Platform      string    `gorm:"index"` // tiktok, shopee, ...
	ExternalID    string    `gorm:"index"` // order / transaction id on the platform
	Descriptor    string
	Quantity      int
	Amount        float64   `gorm:"index"` // always positive; direction comes from RecordType
	OccurredAt    time.Time `gorm:"index"`
	Status        string    `gorm:"index"`
	ContentHash   string    `gorm:"uniqueIndex:idx_record_content"`
	SettledAt     *time.Time
	CreatedAt     time.Time
}

// Inflow reports whether the record represents money entering the bank
// account (deposits match inflow records, withdrawals match outflow ones).
func (r *FinancialRecord) Inflow() bool {
	return r.RecordType == RecordSettlement || r.RecordType == RecordForecast
}
