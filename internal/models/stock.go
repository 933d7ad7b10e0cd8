package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MovementDirection tells whether a movement adds to or removes from stock.
type MovementDirection string

const (
	MovementIn  MovementDirection = "in"
	MovementOut MovementDirection = "out"
)

// IsValid reports whether the direction is known.
func (d MovementDirection) IsValid() bool {
	return d == MovementIn || d == MovementOut
}

// MovementSource classifies what produced a movement.
type MovementSource string

const (
	MovementSourceOrder        MovementSource = "order"
	MovementSourceSale         MovementSource = "sale"
	MovementSourceWaste        MovementSource = "waste"
	MovementSourcePersonalMeal MovementSource = "personal_meal"
	MovementSourceAdjustment   MovementSource = "adjustment"
)

// IsValid reports whether the source is known.
func (s MovementSource) IsValid() bool {
	switch s {
	case MovementSourceOrder, MovementSourceSale, MovementSourceWaste,
		MovementSourcePersonalMeal, MovementSourceAdjustment:
		return true
	}
	return false
}

// StockMovement is one entry of the append-only stock ledger.
// Direction, source and product never change after insert; quantity, price,
// note and date can only be changed through an audited correction.
type StockMovement struct {
	ID                string            `json:"id" gorm:"type:uuid;primaryKey"`
	ProductID         string            `json:"product_id" gorm:"type:uuid;not null;index"`
	Product           *Product          `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Direction         MovementDirection `json:"direction" gorm:"type:varchar(10);not null;index"`
	Quantity          float64           `json:"quantity" gorm:"type:decimal(12,4);not null"`
	UnitPrice         *float64          `json:"unit_price" gorm:"type:decimal(12,4)"`
	TotalCost         *float64          `json:"total_cost" gorm:"type:decimal(15,4)"` // quantity * unit price at write time
	Source            MovementSource    `json:"source" gorm:"type:varchar(30);not null;index:idx_stock_movements_source_ref,priority:1"`
	SourceReferenceID *string           `json:"source_reference_id" gorm:"type:varchar(64);index:idx_stock_movements_source_ref,priority:2"`
	MovementDate      time.Time         `json:"movement_date" gorm:"not null;index"`
	Notes             string            `json:"notes" gorm:"type:text"`
	PerformedBy       string            `json:"performed_by" gorm:"type:varchar(255)"`
	CreatedAt         time.Time         `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt         time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt         gorm.DeletedAt    `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName returns the table name
func (StockMovement) TableName() string {
	return "stock_movements"
}

// BeforeCreate generates the UUID and defaults the movement date
func (sm *StockMovement) BeforeCreate(tx *gorm.DB) error {
	if sm.ID == "" {
		sm.ID = uuid.New().String()
	}
	if sm.MovementDate.IsZero() {
		sm.MovementDate = time.Now().UTC()
	}
	return nil
}

// RecalculateTotalCost sets TotalCost from the captured unit price.
func (sm *StockMovement) RecalculateTotalCost() {
	if sm.UnitPrice == nil {
		sm.TotalCost = nil
		return
	}
	total := sm.Quantity * *sm.UnitPrice
	sm.TotalCost = &total
}

// CorrectionAction is the kind of change recorded against a movement.
type CorrectionAction string

const (
	CorrectionUpdate CorrectionAction = "update"
	CorrectionDelete CorrectionAction = "delete"
)

// MovementCorrection is the audit trail of the manual correction path.
type MovementCorrection struct {
	ID          string           `json:"id" gorm:"type:uuid;primaryKey"`
	MovementID  string           `json:"movement_id" gorm:"type:uuid;not null;index"`
	Action      CorrectionAction `json:"action" gorm:"type:varchar(20);not null"`
	BeforeData  string           `json:"before_data" gorm:"type:text"`
	AfterData   string           `json:"after_data" gorm:"type:text"`
	Reason      string           `json:"reason" gorm:"type:text"`
	PerformedBy string           `json:"performed_by" gorm:"type:varchar(255)"`
	CreatedAt   time.Time        `json:"created_at" gorm:"autoCreateTime;index"`
}

// TableName returns the table name
func (MovementCorrection) TableName() string {
	return "stock_movement_corrections"
}

// BeforeCreate generates the UUID
func (mc *MovementCorrection) BeforeCreate(tx *gorm.DB) error {
	if mc.ID == "" {
		mc.ID = uuid.New().String()
	}
	return nil
}
