package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationRecord is the audit trail of one batch debit. Exactly one of
// ReleaseID or ProductionRunID is set. The compensator replays these rows to
// credit the exact originating batches.
type AllocationRecord struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReleaseID       *uuid.UUID      `gorm:"column:release_id;type:uuid;index"`
	ProductionRunID *uuid.UUID      `gorm:"column:production_run_id;type:uuid;index"`
	ItemID          uuid.UUID       `gorm:"column:item_id;type:uuid;not null"`
	BatchID         uuid.UUID       `gorm:"column:batch_id;type:uuid;not null;index"`
	Quantity        decimal.Decimal `gorm:"column:quantity;type:numeric(14,4);not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}
