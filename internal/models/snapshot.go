package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InventorySnapshot is the single editable count of a product
// (one row per product, updated in place).
type InventorySnapshot struct {
	ID              string    `json:"id" gorm:"type:uuid;primaryKey"`
	ProductID       string    `json:"product_id" gorm:"type:uuid;uniqueIndex;not null"`
	Product         *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	InitialQuantity float64   `json:"initial_quantity" gorm:"type:decimal(12,4);not null;default:0"`
	FinalQuantity   float64   `json:"final_quantity" gorm:"type:decimal(12,4);not null;default:0"`
	Notes           string    `json:"notes" gorm:"type:text"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the table name
func (InventorySnapshot) TableName() string {
	return "inventory_snapshots"
}

// BeforeCreate generates the UUID
func (s *InventorySnapshot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// StocktakeSnapshot is one physical count compared against the theoretical
// quantity derived from the ledger since the previous count.
// Variance is positive on shortage (theoretical - actual).
type StocktakeSnapshot struct {
	ID                  string    `json:"id" gorm:"type:uuid;primaryKey"`
	ProductID           string    `json:"product_id" gorm:"type:uuid;not null;index"`
	SnapshotDate        time.Time `json:"snapshot_date" gorm:"not null;index"`
	InitialQuantity     float64   `json:"initial_quantity" gorm:"type:decimal(12,4);not null"`
	InQuantity          float64   `json:"in_quantity" gorm:"type:decimal(12,4);not null"`
	OutQuantity         float64   `json:"out_quantity" gorm:"type:decimal(12,4);not null"`
	TheoreticalQuantity float64   `json:"theoretical_quantity" gorm:"type:decimal(12,4);not null"`
	ActualQuantity      float64   `json:"actual_quantity" gorm:"type:decimal(12,4);not null"`
	Variance            float64   `json:"variance" gorm:"type:decimal(12,4);not null"`
	VarianceValue       float64   `json:"variance_value" gorm:"type:decimal(15,2);not null"`
	PerformedBy         string    `json:"performed_by" gorm:"type:varchar(255)"`
	Notes               string    `json:"notes" gorm:"type:text"`
	CreatedAt           time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

// TableName returns the table name
func (StocktakeSnapshot) TableName() string {
	return "stocktake_snapshots"
}

// BeforeCreate generates the UUID
func (s *StocktakeSnapshot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}
