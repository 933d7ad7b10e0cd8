package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stockledger/server/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CatalogService manages products, the pricing reference of the ledger.
type CatalogService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewCatalogService(db *gorm.DB, logger *logrus.Logger) *CatalogService {
	return &CatalogService{db: db, logger: logger}
}

// ProductInput is the writable part of a product.
type ProductInput struct {
	Name            string             `json:"name" validate:"required,max=255"`
	Unit            models.ProductUnit `json:"unit" validate:"omitempty,oneof=mass volume count"`
	UnitPrice       float64            `json:"unit_price" validate:"gte=0"`
	WastePercent    float64            `json:"waste_percent" validate:"gte=0,lt=100"`
	CurrentQuantity float64            `json:"current_quantity" validate:"gte=0"`
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return findProduct(s.db.WithContext(ctx), id)
}

func (s *CatalogService) CreateProduct(ctx context.Context, input ProductInput) (*models.Product, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	product := models.Product{
		Name:            input.Name,
		Unit:            input.Unit,
		UnitPrice:       input.UnitPrice,
		WastePercent:    input.WastePercent,
		CurrentQuantity: input.CurrentQuantity,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUniqueProductName(tx, input.Name, ""); err != nil {
			return err
		}
		return tx.Create(&product).Error
	})
	if err != nil {
		return nil, productWriteError(err)
	}

	s.logger.WithFields(logrus.Fields{"product_id": product.ID, "name": product.Name}).Info("product created")
	return &product, nil
}

// UpdateProduct edits the catalog entry. Stored movement costs are never
// recomputed from the new price.
func (s *CatalogService) UpdateProduct(ctx context.Context, id string, input ProductInput) (*models.Product, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	var product *models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		product, err = findProduct(tx, id)
		if err != nil {
			return err
		}
		if err := ensureUniqueProductName(tx, input.Name, id); err != nil {
			return err
		}

		product.Name = input.Name
		if input.Unit != "" {
			product.Unit = input.Unit
		}
		product.UnitPrice = input.UnitPrice
		product.WastePercent = input.WastePercent
		product.CurrentQuantity = input.CurrentQuantity
		return tx.Save(product).Error
	})
	if err != nil {
		return nil, productWriteError(err)
	}
	return product, nil
}

func findProduct(db *gorm.DB, id string) (*models.Product, error) {
	var product models.Product
	if err := db.First(&product, "id = ?", id).Error; err != nil {
		return nil, dbError(err, "product "+id)
	}
	return &product, nil
}

func ensureUniqueProductName(tx *gorm.DB, name, exceptID string) error {
	q := tx.Model(&models.Product{}).Where("name = ?", name)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("product %q already exists: %w", name, ErrConflict)
	}
	return nil
}

func productWriteError(err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("product name already exists: %w", ErrConflict)
	}
	return fmt.Errorf("save product: %w", err)
}
