package services

import (
	"context"
	"fmt"

	"stockledger/server/internal/models"

	"gorm.io/gorm"
)

// InputsService exposes waste records, personal meals and dishes. Other
// workflows write them; here they are only read.
type InputsService struct {
	db *gorm.DB
}

func NewInputsService(db *gorm.DB) *InputsService {
	return &InputsService{db: db}
}

func (s *InputsService) ListWaste(ctx context.Context, productID string, period Period) ([]models.WasteRecord, error) {
	if err := period.validate(); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Scopes(period.scope("date")).Order("date DESC")
	if productID != "" {
		q = q.Where("product_id = ?", productID)
	}
	var records []models.WasteRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list waste records: %w", err)
	}
	return records, nil
}

func (s *InputsService) ListPersonalMeals(ctx context.Context, dishID string, period Period) ([]models.PersonalMealRecord, error) {
	if err := period.validate(); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Scopes(period.scope("date")).Order("date DESC")
	if dishID != "" {
		q = q.Where("dish_id = ?", dishID)
	}
	var records []models.PersonalMealRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list personal meals: %w", err)
	}
	return records, nil
}

// ListDishes returns dishes with their ingredient lines and sold counts.
func (s *InputsService) ListDishes(ctx context.Context) ([]models.Dish, error) {
	var dishes []models.Dish
	if err := s.db.WithContext(ctx).Preload("Ingredients").Order("name ASC").Find(&dishes).Error; err != nil {
		return nil, fmt.Errorf("list dishes: %w", err)
	}
	return dishes, nil
}
