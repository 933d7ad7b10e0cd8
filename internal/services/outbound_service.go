package services

import (
	"context"
	"fmt"

	"stockledger/server/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OutboundService derives the outbound quantity of a product from four
// independent sources on every read. Nothing here is stored.
type OutboundService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewOutboundService(db *gorm.DB, logger *logrus.Logger) *OutboundService {
	return &OutboundService{db: db, logger: logger}
}

// OutboundBreakdown lists each source separately. Total is their sum.
type OutboundBreakdown struct {
	ProductID     string  `json:"product_id"`
	Period        Period  `json:"period"`
	Sales         float64 `json:"sales"`
	Waste         float64 `json:"waste"`
	PersonalMeals float64 `json:"personal_meals"`
	DishSales     float64 `json:"dish_sales"`
	Total         float64 `json:"total"`
}

// Outbound computes the breakdown. The period applies to dated sources:
// ledger sales, waste records and personal meals. Dish sold counts are
// cumulative and always counted in full. A dish whose recipe tree cannot
// be resolved contributes nothing and is logged as a warning.
func (s *OutboundService) Outbound(ctx context.Context, productID string, period Period) (*OutboundBreakdown, error) {
	if err := period.validate(); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	if _, err := findProduct(db, productID); err != nil {
		return nil, err
	}
	b, err := outboundFor(ctx, db, NewIngredientResolver(db, s.logger), productID, period)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"product_id": productID, "total": b.Total}).Debug("outbound computed")
	return b, nil
}

func outboundFor(ctx context.Context, db *gorm.DB, resolver *IngredientResolver, productID string, period Period) (*OutboundBreakdown, error) {
	b := &OutboundBreakdown{ProductID: productID, Period: period}
	var err error

	if b.Sales, err = sumMovements(db, productID, models.MovementOut, models.MovementSourceSale, period); err != nil {
		return nil, fmt.Errorf("ledger sales: %w", err)
	}

	wasteQuery := db.Model(&models.WasteRecord{}).
		Where("product_id = ?", productID).
		Scopes(period.scope("date"))
	if b.Waste, err = sumQuantity(wasteQuery, "quantity"); err != nil {
		return nil, fmt.Errorf("waste: %w", err)
	}

	if b.PersonalMeals, err = personalMealQuantity(ctx, db, resolver, productID, period); err != nil {
		return nil, fmt.Errorf("personal meals: %w", err)
	}

	if b.DishSales, err = dishSalesQuantity(ctx, db, resolver, productID); err != nil {
		return nil, fmt.Errorf("dish sales: %w", err)
	}

	b.Total = b.Sales + b.Waste + b.PersonalMeals + b.DishSales
	return b, nil
}

// personalMealQuantity is Σ meal.count × quantity of the product per dish.
func personalMealQuantity(ctx context.Context, db *gorm.DB, resolver *IngredientResolver, productID string, period Period) (float64, error) {
	type dishCount struct {
		DishID string
		Count  float64
	}
	var counts []dishCount
	if err := db.Model(&models.PersonalMealRecord{}).
		Select("dish_id, SUM(count) AS count").
		Scopes(period.scope("date")).
		Group("dish_id").
		Scan(&counts).Error; err != nil {
		return 0, err
	}
	if len(counts) == 0 {
		return 0, nil
	}

	ids := make([]string, len(counts))
	for i, c := range counts {
		ids[i] = c.DishID
	}
	dishes, err := loadDishes(db, ids)
	if err != nil {
		return 0, err
	}

	total := 0.0
	for _, c := range counts {
		dish, ok := dishes[c.DishID]
		if !ok {
			// meal references a dish that no longer exists
			continue
		}
		perDish, err := resolver.QuantityPerDish(ctx, dish, productID)
		if err != nil {
			if resolver.skip(dish, err) {
				continue
			}
			return 0, err
		}
		total += perDish * c.Count
	}
	return total, nil
}

// dishSalesQuantity is Σ dish.soldCount × quantity of the product per dish.
func dishSalesQuantity(ctx context.Context, db *gorm.DB, resolver *IngredientResolver, productID string) (float64, error) {
	var dishes []models.Dish
	if err := db.Preload("Ingredients").Where("sold_count > 0").Find(&dishes).Error; err != nil {
		return 0, err
	}
	total := 0.0
	for i := range dishes {
		perDish, err := resolver.QuantityPerDish(ctx, &dishes[i], productID)
		if err != nil {
			if resolver.skip(&dishes[i], err) {
				continue
			}
			return 0, err
		}
		total += perDish * dishes[i].SoldCount
	}
	return total, nil
}

func loadDishes(db *gorm.DB, ids []string) (map[string]*models.Dish, error) {
	var dishes []models.Dish
	if err := db.Preload("Ingredients").Where("id IN ?", ids).Find(&dishes).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Dish, len(dishes))
	for i := range dishes {
		byID[dishes[i].ID] = &dishes[i]
	}
	return byID, nil
}
