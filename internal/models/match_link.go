package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Match provenance.
const (
	MatchedByAuto   = "auto"
	MatchedByManual = "manual"
)

// MatchLink pairs one bank transaction with one internal entity. At most one
// active link may reference either side; unmatching flips Active off instead
// of deleting, keeping the row as an audit trail.
type MatchLink struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerID           string    `gorm:"index"`
	BankTransactionID uuid.UUID `gorm:"index"`
	EntityType        string    `gorm:"index"` // settlement, expense, wallet_topup
	EntityID          uuid.UUID `gorm:"index"`
	MatchedAmount     float64
	MatchScore        float64 // 0-100
	MatchedBy         string
	Notes             string
	Details           datatypes.JSON
	Active            bool `gorm:"index"`
	CreatedAt         time.Time
	ReleasedAt        *time.Time
}
