package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PurchaseOrderStatus is the status of a purchase order
type PurchaseOrderStatus string

const (
	PurchaseOrderStatusPending   PurchaseOrderStatus = "pending"   // created, goods not yet accepted
	PurchaseOrderStatusConfirmed PurchaseOrderStatus = "confirmed" // goods accepted, ledger entries exist
	PurchaseOrderStatusCancelled PurchaseOrderStatus = "cancelled"
)

// IsValid reports whether the status is known.
func (s PurchaseOrderStatus) IsValid() bool {
	switch s {
	case PurchaseOrderStatusPending, PurchaseOrderStatusConfirmed, PurchaseOrderStatusCancelled:
		return true
	}
	return false
}

// IsActivatingTransition reports whether moving from old to next newly
// enters the confirmed status. Only such a transition materializes ledger
// entries.
func IsActivatingTransition(old, next PurchaseOrderStatus) bool {
	return next == PurchaseOrderStatusConfirmed && old != PurchaseOrderStatusConfirmed
}

// PurchaseOrder is an order placed with a supplier
type PurchaseOrder struct {
	ID          string              `json:"id" gorm:"type:uuid;primaryKey"`
	OrderNumber string              `json:"order_number" gorm:"type:varchar(100);uniqueIndex;not null"` // PO-20260115-1a2b3c
	Supplier    string              `json:"supplier" gorm:"type:varchar(255);not null;index"`
	OrderDate   time.Time           `json:"order_date" gorm:"not null;index"`
	TotalAmount float64             `json:"total_amount" gorm:"type:decimal(15,4);not null;default:0"`
	Status      PurchaseOrderStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Operator    string              `json:"operator" gorm:"type:varchar(255)"`
	Notes       string              `json:"notes" gorm:"type:text"`
	ConfirmedAt *time.Time          `json:"confirmed_at"`
	CreatedAt   time.Time           `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt   time.Time           `json:"updated_at" gorm:"autoUpdateTime"`

	Items []PurchaseOrderItem `gorm:"foreignKey:PurchaseOrderID;constraint:OnDelete:CASCADE" json:"items"`
}

// TableName returns the table name
func (PurchaseOrder) TableName() string {
	return "purchase_orders"
}

// BeforeCreate generates the UUID, the order number and defaults
func (po *PurchaseOrder) BeforeCreate(tx *gorm.DB) error {
	if po.ID == "" {
		po.ID = uuid.New().String()
	}
	if po.Status == "" {
		po.Status = PurchaseOrderStatusPending
	}
	if po.OrderDate.IsZero() {
		po.OrderDate = time.Now().UTC()
	}
	if po.OrderNumber == "" {
		po.OrderNumber = fmt.Sprintf("PO-%s-%s", po.OrderDate.Format("20060102"), strings.ToUpper(po.ID[:6]))
	}
	return nil
}

// IsPending reports whether the order is still pending
func (po *PurchaseOrder) IsPending() bool {
	return po.Status == PurchaseOrderStatusPending
}

// IsConfirmed reports whether the order is confirmed
func (po *PurchaseOrder) IsConfirmed() bool {
	return po.Status == PurchaseOrderStatusConfirmed
}

// IsCancelled reports whether the order is cancelled
func (po *PurchaseOrder) IsCancelled() bool {
	return po.Status == PurchaseOrderStatusCancelled
}

// CalculateTotalAmount recomputes line totals and returns the order total
func (po *PurchaseOrder) CalculateTotalAmount() float64 {
	total := 0.0
	for i := range po.Items {
		po.Items[i].TotalPrice = po.Items[i].Quantity * po.Items[i].UnitPrice
		total += po.Items[i].TotalPrice
	}
	return total
}

// PurchaseOrderItem is one line of a purchase order
type PurchaseOrderItem struct {
	ID              string    `json:"id" gorm:"type:uuid;primaryKey"`
	PurchaseOrderID string    `json:"purchase_order_id" gorm:"type:uuid;not null;index"`
	ProductID       string    `json:"product_id" gorm:"type:uuid;not null;index"`
	Product         *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Quantity        float64   `json:"quantity" gorm:"type:decimal(12,4);not null"`
	UnitPrice       float64   `json:"unit_price" gorm:"type:decimal(12,4);not null"` // price fixed at order time
	TotalPrice      float64   `json:"total_price" gorm:"type:decimal(15,4);not null"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the table name
func (PurchaseOrderItem) TableName() string {
	return "purchase_order_items"
}

// BeforeCreate generates the UUID and the line total
func (poi *PurchaseOrderItem) BeforeCreate(tx *gorm.DB) error {
	if poi.ID == "" {
		poi.ID = uuid.New().String()
	}
	poi.TotalPrice = poi.Quantity * poi.UnitPrice
	return nil
}
