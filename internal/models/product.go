package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductUnit is the unit of measure family of a catalog product.
type ProductUnit string

const (
	ProductUnitMass   ProductUnit = "mass"   // kg, g
	ProductUnitVolume ProductUnit = "volume" // l, ml
	ProductUnitCount  ProductUnit = "count"  // pcs
)

// IsValid reports whether the unit is one of the known families.
func (u ProductUnit) IsValid() bool {
	switch u {
	case ProductUnitMass, ProductUnitVolume, ProductUnitCount:
		return true
	}
	return false
}

// Product is an ingredient in the catalog. It is the pricing reference for
// every cost computation in the ledger and variance engine.
type Product struct {
	ID              string      `json:"id" gorm:"type:uuid;primaryKey"`
	Name            string      `json:"name" gorm:"type:varchar(255);uniqueIndex;not null"`
	Unit            ProductUnit `json:"unit" gorm:"type:varchar(20);not null;default:'count'"`
	UnitPrice       float64     `json:"unit_price" gorm:"type:decimal(12,4);not null;default:0"`  // nominal price per unit
	WastePercent    float64     `json:"waste_percent" gorm:"type:decimal(5,2);not null;default:0"` // 0 <= w < 100
	CurrentQuantity float64     `json:"current_quantity" gorm:"type:decimal(12,4);not null;default:0"`
	CreatedAt       time.Time   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the table name
func (Product) TableName() string {
	return "products"
}

// BeforeCreate generates the UUID and the default unit
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Unit == "" {
		p.Unit = ProductUnitCount
	}
	return nil
}

// EffectiveUnitPrice returns the price of one usable unit once the waste
// share is discarded: price / (1 - waste%).
func (p *Product) EffectiveUnitPrice() float64 {
	if p.WastePercent <= 0 {
		return p.UnitPrice
	}
	if p.WastePercent >= 100 {
		return 0
	}
	return p.UnitPrice / (1 - p.WastePercent/100)
}
