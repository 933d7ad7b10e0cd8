package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"stockledger/server/internal/events"
	"stockledger/server/internal/models"
	"stockledger/server/internal/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PurchaseOrderService manages supplier orders. Confirming an order is the
// only path that writes `order` entries into the ledger.
type PurchaseOrderService struct {
	db        *gorm.DB
	logger    *logrus.Logger
	publisher events.Publisher
	locker    OrderLocker
}

// NewPurchaseOrderService accepts a nil locker for single-instance setups.
func NewPurchaseOrderService(db *gorm.DB, logger *logrus.Logger, publisher events.Publisher, locker OrderLocker) *PurchaseOrderService {
	if locker == nil {
		locker = noopLocker{}
	}
	return &PurchaseOrderService{
		db:        db,
		logger:    logger,
		publisher: publisher,
		locker:    locker,
	}
}

type PurchaseOrderItemInput struct {
	ProductID string  `json:"product_id"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// PurchaseOrderInput is used for create and update. On update a nil Items
// leaves the lines untouched.
type PurchaseOrderInput struct {
	Supplier  string                   `json:"supplier" validate:"required,max=255"`
	OrderDate *time.Time               `json:"order_date"`
	Operator  string                   `json:"operator" validate:"max=255"`
	Notes     string                   `json:"notes"`
	Items     []PurchaseOrderItemInput `json:"items"`
}

type PurchaseOrderFilter struct {
	Status   models.PurchaseOrderStatus
	Supplier string
	Limit    int
}

type StatusTransitionInput struct {
	Status   models.PurchaseOrderStatus `json:"status"`
	Operator string                     `json:"operator"`
	Notes    string                     `json:"notes"`
}

// StatusTransitionResult reports what a transition did to the ledger.
// DuplicateActivation is set when the order was confirmed again but its
// ledger entries already existed; nothing was written in that case.
type StatusTransitionResult struct {
	Order               *models.PurchaseOrder      `json:"order"`
	PreviousStatus      models.PurchaseOrderStatus `json:"previous_status"`
	EntriesCreated      int                        `json:"entries_created"`
	DuplicateActivation bool                       `json:"duplicate_activation"`
	Movements           []models.StockMovement     `json:"movements,omitempty"`
}

func validateOrderItems(items []PurchaseOrderItemInput, requireAny bool) *ValidationError {
	verr := &ValidationError{}
	if requireAny && len(items) == 0 {
		verr.Add("items", "at least one line item is required")
	}
	for i, item := range items {
		prefix := fmt.Sprintf("items[%d].", i)
		if strings.TrimSpace(item.ProductID) == "" {
			verr.Add(prefix+"product_id", "required")
		}
		if math.IsNaN(item.Quantity) || item.Quantity <= 0 {
			verr.Add(prefix+"quantity", "must be > 0")
		}
		if math.IsNaN(item.UnitPrice) || item.UnitPrice < 0 {
			verr.Add(prefix+"unit_price", "must be >= 0")
		}
	}
	return verr
}

func itemsAsInput(items []models.PurchaseOrderItem) []PurchaseOrderItemInput {
	out := make([]PurchaseOrderItemInput, len(items))
	for i, item := range items {
		out[i] = PurchaseOrderItemInput{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: item.UnitPrice}
	}
	return out
}

// checkItemProducts flags lines that reference unknown products.
func checkItemProducts(tx *gorm.DB, items []PurchaseOrderItemInput) error {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	if len(ids) == 0 {
		return nil
	}
	var found []string
	if err := tx.Model(&models.Product{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return err
	}
	known := make(map[string]bool, len(found))
	for _, id := range found {
		known[id] = true
	}
	verr := &ValidationError{}
	for i, item := range items {
		if !known[item.ProductID] {
			verr.Add(fmt.Sprintf("items[%d].product_id", i), "unknown product")
		}
	}
	return verr.OrNil()
}

func buildOrderItems(orderID string, items []PurchaseOrderItemInput) []models.PurchaseOrderItem {
	out := make([]models.PurchaseOrderItem, len(items))
	for i, item := range items {
		out[i] = models.PurchaseOrderItem{
			PurchaseOrderID: orderID,
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			TotalPrice:      item.Quantity * item.UnitPrice,
		}
	}
	return out
}

// CreatePurchaseOrder stores a new pending order.
func (s *PurchaseOrderService) CreatePurchaseOrder(ctx context.Context, input PurchaseOrderInput) (*models.PurchaseOrder, error) {
	input.Supplier = strings.TrimSpace(input.Supplier)
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if err := validateOrderItems(input.Items, false).OrNil(); err != nil {
		return nil, err
	}

	order := models.PurchaseOrder{
		Supplier: input.Supplier,
		Status:   models.PurchaseOrderStatusPending,
		Operator: input.Operator,
		Notes:    input.Notes,
		Items:    buildOrderItems("", input.Items),
	}
	if input.OrderDate != nil {
		order.OrderDate = input.OrderDate.UTC()
	}
	order.TotalAmount = order.CalculateTotalAmount()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkItemProducts(tx, input.Items); err != nil {
			return err
		}
		return tx.Create(&order).Error
	})
	if err != nil {
		if !isDomainError(err) {
			utils.LogError(s.logger, "purchase_orders", "CreatePurchaseOrder", "create order", input.Supplier, err)
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"items":        len(order.Items),
	}).Info("purchase order created")
	return &order, nil
}

func (s *PurchaseOrderService) GetPurchaseOrder(ctx context.Context, id string) (*models.PurchaseOrder, error) {
	return loadOrder(s.db.WithContext(ctx), id)
}

func loadOrder(db *gorm.DB, id string) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	if err := db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC, id ASC")
	}).First(&order, "id = ?", id).Error; err != nil {
		return nil, dbError(err, "purchase order "+id)
	}
	return &order, nil
}

func (s *PurchaseOrderService) ListPurchaseOrders(ctx context.Context, filter PurchaseOrderFilter) ([]models.PurchaseOrder, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, newValidationError("status", "must be one of pending, confirmed, cancelled")
	}
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := s.db.WithContext(ctx).Model(&models.PurchaseOrder{}).
		Preload("Items").
		Order("order_date DESC, created_at DESC").
		Limit(limit)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Supplier != "" {
		query = query.Where("supplier = ?", filter.Supplier)
	}

	var orders []models.PurchaseOrder
	if err := query.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	return orders, nil
}

// UpdatePurchaseOrder edits descriptive fields and, while the order is not
// confirmed, its lines. The status is changed only by UpdateStatus.
func (s *PurchaseOrderService) UpdatePurchaseOrder(ctx context.Context, id string, input PurchaseOrderInput) (*models.PurchaseOrder, error) {
	input.Supplier = strings.TrimSpace(input.Supplier)
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if input.Items != nil {
		if err := validateOrderItems(input.Items, false).OrNil(); err != nil {
			return nil, err
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.PurchaseOrder
		if err := lockingRead(tx).First(&order, "id = ?", id).Error; err != nil {
			return dbError(err, "purchase order "+id)
		}

		updates := map[string]interface{}{
			"supplier":   input.Supplier,
			"operator":   input.Operator,
			"notes":      input.Notes,
			"updated_at": time.Now().UTC(),
		}
		if input.OrderDate != nil {
			updates["order_date"] = input.OrderDate.UTC()
		}

		if input.Items != nil {
			if order.IsConfirmed() {
				return fmt.Errorf("line items of confirmed order %s cannot change: %w", order.OrderNumber, ErrConflict)
			}
			if err := checkItemProducts(tx, input.Items); err != nil {
				return err
			}
			if err := tx.Where("purchase_order_id = ?", id).Delete(&models.PurchaseOrderItem{}).Error; err != nil {
				return err
			}
			order.Items = buildOrderItems(id, input.Items)
			if len(order.Items) > 0 {
				if err := tx.Create(&order.Items).Error; err != nil {
					return err
				}
			}
			updates["total_amount"] = order.CalculateTotalAmount()
		}

		return tx.Model(&models.PurchaseOrder{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		if !isDomainError(err) {
			utils.LogError(s.logger, "purchase_orders", "UpdatePurchaseOrder", "update order", id, err)
		}
		return nil, err
	}

	return loadOrder(s.db.WithContext(ctx), id)
}

// lockingRead adds SELECT ... FOR UPDATE on dialects that support it.
func lockingRead(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// UpdateStatus moves an order to a new status. When the transition newly
// enters confirmed and no `order` entries exist for the order yet, one `in`
// movement per line item is written in the same transaction as the status
// change. Confirming again is a recognised no-op for the ledger.
func (s *PurchaseOrderService) UpdateStatus(ctx context.Context, id string, input StatusTransitionInput) (*StatusTransitionResult, error) {
	if !input.Status.IsValid() {
		return nil, newValidationError("status", "must be one of pending, confirmed, cancelled")
	}

	current, err := loadOrder(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if input.Status == models.PurchaseOrderStatusConfirmed && !current.IsConfirmed() {
		if err := validateOrderItems(itemsAsInput(current.Items), true).OrNil(); err != nil {
			return nil, err
		}
	}

	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	result := &StatusTransitionResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.PurchaseOrder
		if err := lockingRead(tx).First(&order, "id = ?", id).Error; err != nil {
			return dbError(err, "purchase order "+id)
		}
		if err := tx.Where("purchase_order_id = ?", id).Order("created_at ASC, id ASC").Find(&order.Items).Error; err != nil {
			return err
		}

		result.PreviousStatus = order.Status
		activating := models.IsActivatingTransition(order.Status, input.Status)

		if activating {
			if err := validateOrderItems(itemsAsInput(order.Items), true).OrNil(); err != nil {
				return err
			}
			var existing int64
			if err := tx.Unscoped().Model(&models.StockMovement{}).
				Where("source = ? AND source_reference_id = ?", models.MovementSourceOrder, id).
				Count(&existing).Error; err != nil {
				return fmt.Errorf("check existing order entries: %w", err)
			}
			if existing > 0 {
				result.DuplicateActivation = true
				s.logger.WithFields(logrus.Fields{
					"order_id":         id,
					"existing_entries": existing,
					"previous_status":  order.Status,
				}).Warn("purchase order confirmed again, ledger entries already exist")
			}
		}

		now := time.Now().UTC()
		updates := map[string]interface{}{
			"status":     input.Status,
			"updated_at": now,
		}
		if input.Operator != "" {
			updates["operator"] = input.Operator
			order.Operator = input.Operator
		}
		if input.Notes != "" {
			updates["notes"] = input.Notes
		}
		if activating && !result.DuplicateActivation {
			updates["confirmed_at"] = now
		}
		if err := tx.Model(&models.PurchaseOrder{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		if !activating || result.DuplicateActivation {
			return nil
		}

		note := fmt.Sprintf("Purchase order %s from %s", order.OrderNumber, order.Supplier)
		if order.Operator != "" {
			note += ", accepted by " + order.Operator
		}
		orderID := order.ID
		for _, item := range order.Items {
			price := item.UnitPrice
			movement := models.StockMovement{
				ProductID:         item.ProductID,
				Direction:         models.MovementIn,
				Quantity:          item.Quantity,
				UnitPrice:         &price,
				Source:            models.MovementSourceOrder,
				SourceReferenceID: &orderID,
				MovementDate:      order.OrderDate,
				Notes:             note,
				PerformedBy:       order.Operator,
			}
			movement.RecalculateTotalCost()
			if err := tx.Create(&movement).Error; err != nil {
				return fmt.Errorf("create ledger entry for product %s: %w", item.ProductID, err)
			}
			result.Movements = append(result.Movements, movement)
		}
		result.EntriesCreated = len(result.Movements)
		return nil
	})
	if err != nil {
		if !isDomainError(err) {
			utils.LogError(s.logger, "purchase_orders", "UpdateStatus", "status transition rolled back", input, err)
		}
		return nil, err
	}

	order, err := loadOrder(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	result.Order = order

	s.logger.WithFields(logrus.Fields{
		"order_id":        id,
		"previous_status": result.PreviousStatus,
		"status":          order.Status,
		"entries_created": result.EntriesCreated,
	}).Info("purchase order status changed")

	publish(ctx, s.publisher, s.logger, events.New(events.PurchaseOrderStatusChanged, id, result))
	for _, m := range result.Movements {
		publish(ctx, s.publisher, s.logger, events.New(events.StockMovementCreated, m.ProductID, m))
	}
	return result, nil
}
