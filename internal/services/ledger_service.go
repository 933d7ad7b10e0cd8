package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"stockledger/server/internal/events"
	"stockledger/server/internal/models"
	"stockledger/server/internal/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LedgerService owns the stock movement ledger. Entries are appended,
// read and, through an audited correction, adjusted. Direction, source and
// product of an entry never change.
type LedgerService struct {
	db        *gorm.DB
	logger    *logrus.Logger
	publisher events.Publisher
}

func NewLedgerService(db *gorm.DB, logger *logrus.Logger, publisher events.Publisher) *LedgerService {
	return &LedgerService{db: db, logger: logger, publisher: publisher}
}

// MovementFilter narrows ListMovements. Empty fields match everything.
type MovementFilter struct {
	ProductID         string
	Direction         models.MovementDirection
	Source            models.MovementSource
	SourceReferenceID string
	Period            Period
	Limit             int
}

// MovementCorrectionInput lists the mutable fields of an entry. Direction,
// Source and ProductID are accepted only so that a caller trying to change
// them gets a field error instead of a silent no-op.
type MovementCorrectionInput struct {
	Quantity     *float64                  `json:"quantity" validate:"omitempty,gte=0"`
	UnitPrice    *float64                  `json:"unit_price" validate:"omitempty,gte=0"`
	Notes        *string                   `json:"notes"`
	MovementDate *time.Time                `json:"movement_date"`
	Direction    *models.MovementDirection `json:"direction,omitempty"`
	Source       *models.MovementSource    `json:"source,omitempty"`
	ProductID    *string                   `json:"product_id,omitempty"`
	Reason       string                    `json:"reason" validate:"max=1000"`
	PerformedBy  string                    `json:"performed_by" validate:"max=255"`
}

// movementState is what a correction row records before and after.
type movementState struct {
	Quantity     float64   `json:"quantity"`
	UnitPrice    *float64  `json:"unit_price"`
	TotalCost    *float64  `json:"total_cost"`
	Notes        string    `json:"notes"`
	MovementDate time.Time `json:"movement_date"`
}

func stateOf(m *models.StockMovement) string {
	b, _ := json.Marshal(movementState{
		Quantity:     m.Quantity,
		UnitPrice:    m.UnitPrice,
		TotalCost:    m.TotalCost,
		Notes:        m.Notes,
		MovementDate: m.MovementDate,
	})
	return string(b)
}

func validateMovement(m *models.StockMovement) error {
	verr := &ValidationError{}
	if strings.TrimSpace(m.ProductID) == "" {
		verr.Add("product_id", "required")
	}
	if math.IsNaN(m.Quantity) || m.Quantity < 0 {
		verr.Add("quantity", "must be >= 0")
	}
	if !m.Direction.IsValid() {
		verr.Add("direction", "must be one of in, out")
	}
	if !m.Source.IsValid() {
		verr.Add("source", "must be one of order, sale, waste, personal_meal, adjustment")
	}
	if m.UnitPrice != nil && (math.IsNaN(*m.UnitPrice) || *m.UnitPrice < 0) {
		verr.Add("unit_price", "must be >= 0")
	}
	return verr.OrNil()
}

// Append validates and stores one manual entry. Entries sourced from a
// purchase order are written only by order confirmation. When no unit price
// is given the product's current price is captured.
func (s *LedgerService) Append(ctx context.Context, movement *models.StockMovement) (*models.StockMovement, error) {
	if err := validateMovement(movement); err != nil {
		return nil, err
	}
	if movement.Source == models.MovementSourceOrder {
		return nil, newValidationError("source", "order entries are created by purchase order confirmation")
	}

	movement.ID = ""
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := findProduct(tx, movement.ProductID)
		if err != nil {
			return err
		}
		if movement.UnitPrice == nil {
			price := product.UnitPrice
			movement.UnitPrice = &price
		}
		movement.RecalculateTotalCost()
		return tx.Create(movement).Error
	})
	if err != nil {
		if !isDomainError(err) {
			utils.LogError(s.logger, "ledger", "Append", "create movement", movement.ProductID, err)
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"movement_id": movement.ID,
		"product_id":  movement.ProductID,
		"direction":   movement.Direction,
		"source":      movement.Source,
		"quantity":    movement.Quantity,
	}).Info("stock movement appended")
	publish(ctx, s.publisher, s.logger, events.New(events.StockMovementCreated, movement.ProductID, movement))
	return movement, nil
}

func (s *LedgerService) ListMovements(ctx context.Context, filter MovementFilter) ([]models.StockMovement, error) {
	if err := filter.Period.validate(); err != nil {
		return nil, err
	}
	if filter.Direction != "" && !filter.Direction.IsValid() {
		return nil, newValidationError("direction", "must be one of in, out")
	}
	if filter.Source != "" && !filter.Source.IsValid() {
		return nil, newValidationError("source", "unknown source")
	}

	q := s.db.WithContext(ctx).Model(&models.StockMovement{}).
		Scopes(filter.Period.scope("movement_date")).
		Order("movement_date DESC, created_at DESC")
	if filter.ProductID != "" {
		q = q.Where("product_id = ?", filter.ProductID)
	}
	if filter.Direction != "" {
		q = q.Where("direction = ?", filter.Direction)
	}
	if filter.Source != "" {
		q = q.Where("source = ?", filter.Source)
	}
	if filter.SourceReferenceID != "" {
		q = q.Where("source_reference_id = ?", filter.SourceReferenceID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var movements []models.StockMovement
	if err := q.Find(&movements).Error; err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return movements, nil
}

// ListByProduct returns every live entry of a product.
func (s *LedgerService) ListByProduct(ctx context.Context, productID string) ([]models.StockMovement, error) {
	if _, err := findProduct(s.db.WithContext(ctx), productID); err != nil {
		return nil, err
	}
	return s.ListMovements(ctx, MovementFilter{ProductID: productID})
}

func (s *LedgerService) GetMovement(ctx context.Context, id string) (*models.StockMovement, error) {
	var movement models.StockMovement
	if err := s.db.WithContext(ctx).First(&movement, "id = ?", id).Error; err != nil {
		return nil, dbError(err, "movement "+id)
	}
	return &movement, nil
}

// Correct changes quantity, unit price, note or date of an entry and
// records the before/after state in the same transaction.
func (s *LedgerService) Correct(ctx context.Context, id string, input MovementCorrectionInput) (*models.StockMovement, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if input.Quantity == nil && input.UnitPrice == nil && input.Notes == nil && input.MovementDate == nil {
		return nil, newValidationError("correction", "nothing to correct")
	}

	var movement models.StockMovement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&movement, "id = ?", id).Error; err != nil {
			return dbError(err, "movement "+id)
		}

		verr := &ValidationError{}
		if input.Direction != nil && *input.Direction != movement.Direction {
			verr.Add("direction", "immutable")
		}
		if input.Source != nil && *input.Source != movement.Source {
			verr.Add("source", "immutable")
		}
		if input.ProductID != nil && *input.ProductID != movement.ProductID {
			verr.Add("product_id", "immutable")
		}
		if err := verr.OrNil(); err != nil {
			return err
		}

		before := stateOf(&movement)
		if input.Quantity != nil {
			movement.Quantity = *input.Quantity
		}
		if input.UnitPrice != nil {
			price := *input.UnitPrice
			movement.UnitPrice = &price
		}
		if input.Notes != nil {
			movement.Notes = *input.Notes
		}
		if input.MovementDate != nil {
			movement.MovementDate = input.MovementDate.UTC()
		}
		movement.RecalculateTotalCost()
		movement.UpdatedAt = time.Now().UTC()

		if err := tx.Model(&movement).Select("quantity", "unit_price", "total_cost", "notes", "movement_date", "updated_at").
			Updates(&movement).Error; err != nil {
			return fmt.Errorf("update movement: %w", err)
		}

		return tx.Create(&models.MovementCorrection{
			MovementID:  movement.ID,
			Action:      models.CorrectionUpdate,
			BeforeData:  before,
			AfterData:   stateOf(&movement),
			Reason:      input.Reason,
			PerformedBy: input.PerformedBy,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"movement_id":  movement.ID,
		"performed_by": input.PerformedBy,
	}).Info("stock movement corrected")
	publish(ctx, s.publisher, s.logger, events.New(events.StockMovementCorrected, movement.ProductID, movement))
	return &movement, nil
}

// Delete soft-deletes an entry and leaves a correction row behind.
func (s *LedgerService) Delete(ctx context.Context, id, performedBy, reason string) error {
	var movement models.StockMovement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&movement, "id = ?", id).Error; err != nil {
			return dbError(err, "movement "+id)
		}
		if err := tx.Create(&models.MovementCorrection{
			MovementID:  movement.ID,
			Action:      models.CorrectionDelete,
			BeforeData:  stateOf(&movement),
			Reason:      reason,
			PerformedBy: performedBy,
		}).Error; err != nil {
			return err
		}
		return tx.Delete(&movement).Error
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{"movement_id": id, "performed_by": performedBy}).Info("stock movement deleted")
	publish(ctx, s.publisher, s.logger, events.New(events.StockMovementDeleted, movement.ProductID, movement))
	return nil
}

// ListCorrections returns the audit trail of one entry, deleted or not.
func (s *LedgerService) ListCorrections(ctx context.Context, movementID string) ([]models.MovementCorrection, error) {
	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Unscoped().Model(&models.StockMovement{}).Where("id = ?", movementID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("movement %s: %w", movementID, ErrNotFound)
	}

	var corrections []models.MovementCorrection
	if err := db.Where("movement_id = ?", movementID).Order("created_at ASC").Find(&corrections).Error; err != nil {
		return nil, fmt.Errorf("list corrections: %w", err)
	}
	return corrections, nil
}

// Inbound sums every `in` entry of the product regardless of source.
func (s *LedgerService) Inbound(ctx context.Context, productID string, period Period) (float64, error) {
	if err := period.validate(); err != nil {
		return 0, err
	}
	db := s.db.WithContext(ctx)
	if _, err := findProduct(db, productID); err != nil {
		return 0, err
	}
	return sumMovements(db, productID, models.MovementIn, "", period)
}

// sumMovements totals live entries of a product. An empty source matches
// any source.
func sumMovements(db *gorm.DB, productID string, direction models.MovementDirection, source models.MovementSource, period Period) (float64, error) {
	q := db.Model(&models.StockMovement{}).
		Where("product_id = ? AND direction = ?", productID, direction).
		Scopes(period.scope("movement_date"))
	if source != "" {
		q = q.Where("source = ?", source)
	}
	return sumQuantity(q, "quantity")
}

func sumQuantity(q *gorm.DB, column string) (float64, error) {
	var total float64
	if err := q.Select("COALESCE(SUM(" + column + "), 0)").Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("sum %s: %w", column, err)
	}
	return total, nil
}
