package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Import batch statuses.
const (
	BatchPending    = "pending"
	BatchProcessing = "processing"
	BatchCompleted  = "completed"
	BatchFailed     = "failed"
	BatchReplaced   = "replaced"
)

// Import modes (bank statements only).
const (
	ModeAppend       = "append"
	ModeReplaceRange = "replace_range"
	ModeReplaceAll   = "replace_all"
)

// Report kinds discriminate what a batch carries.
const (
	ReportBankStatement = "bank_statement"
	ReportSettlement    = "settlement"
	ReportForecast      = "forecast"
	ReportAds           = "ads"
	ReportExpense       = "expense"
	ReportWalletTopup   = "wallet_topup"
)

type ImportBatch struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerID        string    `gorm:"index:idx_batch_fingerprint"`
	SourceFileHash string    `gorm:"index:idx_batch_fingerprint"`
	ReportKind     string    `gorm:"index:idx_batch_fingerprint"`
	ScopeKey       string    `gorm:"index:idx_batch_fingerprint"`
	FileName       string
	RowCount       int
	InsertedCount  int
	SkippedCount   int
	RejectedCount  int
	DeletedCount   int
	Status         string `gorm:"index"`
	ImportMode     string
	ErrorMessage   string
	Metadata       datatypes.JSON
	CreatedAt      time.Time
	CompletedAt    *time.Time
}
