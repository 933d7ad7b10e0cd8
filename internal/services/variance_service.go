package services

import (
	"context"
	"fmt"

	"stockledger/server/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// VarianceService compares the editable snapshot with the stock the ledger
// says should be there. Positive variance is a shortage.
type VarianceService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewVarianceService(db *gorm.DB, logger *logrus.Logger) *VarianceService {
	return &VarianceService{db: db, logger: logger}
}

type VarianceRow struct {
	ProductID     string             `json:"product_id"`
	ProductName   string             `json:"product_name"`
	Unit          models.ProductUnit `json:"unit"`
	HasSnapshot   bool               `json:"has_snapshot"`
	Initial       float64            `json:"initial_quantity"`
	Inbound       float64            `json:"inbound"`
	Outbound      OutboundBreakdown  `json:"outbound"`
	Final         float64            `json:"final_quantity"`
	Theoretical   float64            `json:"theoretical_quantity"` // initial + inbound - outbound
	Variance      float64            `json:"variance"`             // theoretical - final
	UnitPrice     float64            `json:"unit_price"`           // effective, waste included
	VarianceValue decimal.Decimal    `json:"variance_value"`
}

// Variance computes the row of one product.
func (s *VarianceService) Variance(ctx context.Context, productID string, period Period) (*VarianceRow, error) {
	if err := period.validate(); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	product, err := findProduct(db, productID)
	if err != nil {
		return nil, err
	}
	return varianceFor(ctx, db, NewIngredientResolver(db, s.logger), product, period)
}

// Grid computes one row per catalog product, ordered by name.
func (s *VarianceService) Grid(ctx context.Context, period Period) ([]VarianceRow, error) {
	if err := period.validate(); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	var products []models.Product
	if err := db.Order("name ASC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	resolver := NewIngredientResolver(db, s.logger)
	rows := make([]VarianceRow, 0, len(products))
	for i := range products {
		row, err := varianceFor(ctx, db, resolver, &products[i], period)
		if err != nil {
			return nil, fmt.Errorf("variance of %s: %w", products[i].Name, err)
		}
		rows = append(rows, *row)
	}
	s.logger.WithField("products", len(rows)).Debug("variance grid computed")
	return rows, nil
}

func varianceFor(ctx context.Context, db *gorm.DB, resolver *IngredientResolver, product *models.Product, period Period) (*VarianceRow, error) {
	initial, final, found, err := snapshotQuantities(db, product.ID)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	inbound, err := sumMovements(db, product.ID, models.MovementIn, "", period)
	if err != nil {
		return nil, fmt.Errorf("inbound: %w", err)
	}
	outbound, err := outboundFor(ctx, db, resolver, product.ID, period)
	if err != nil {
		return nil, err
	}

	theoretical := initial + inbound - outbound.Total
	variance := theoretical - final
	price := product.EffectiveUnitPrice()

	return &VarianceRow{
		ProductID:     product.ID,
		ProductName:   product.Name,
		Unit:          product.Unit,
		HasSnapshot:   found,
		Initial:       initial,
		Inbound:       inbound,
		Outbound:      *outbound,
		Final:         final,
		Theoretical:   theoretical,
		Variance:      variance,
		UnitPrice:     price,
		VarianceValue: moneyValue(variance, price),
	}, nil
}

// moneyValue is quantity × price rounded to cents.
func moneyValue(quantity, price float64) decimal.Decimal {
	return decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(price)).Round(2)
}
