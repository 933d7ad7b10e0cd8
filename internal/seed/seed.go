// Package seed fills an empty database with a small pizzeria catalog so
// the reconciliation endpoints have something to show.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockledger/server/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Summary struct {
	ProductsCreated int
	RecipesCreated  int
	DishesCreated   int
	WasteCreated    int
	MealsCreated    int
}

type productSeed struct {
	name  string
	unit  models.ProductUnit
	price float64
	waste float64
}

var demoProducts = []productSeed{
	{"Flour", models.ProductUnitMass, 1.2, 2},
	{"Mozzarella", models.ProductUnitMass, 9.5, 0},
	{"Tomato sauce", models.ProductUnitVolume, 3.1, 5},
	{"Olive oil", models.ProductUnitVolume, 8, 0},
	{"Basil", models.ProductUnitMass, 24, 10},
	{"Pizza box", models.ProductUnitCount, 0.35, 0},
}

// Demo creates whatever part of the demo data is missing. Rows are matched
// by name, so running it twice changes nothing.
func Demo(ctx context.Context, db *gorm.DB, logger *logrus.Logger) (*Summary, error) {
	summary := &Summary{}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products := make(map[string]string, len(demoProducts))
		for _, ps := range demoProducts {
			var p models.Product
			err := tx.Where("name = ?", ps.name).First(&p).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				p = models.Product{Name: ps.name, Unit: ps.unit, UnitPrice: ps.price, WastePercent: ps.waste}
				if err := tx.Create(&p).Error; err != nil {
					return fmt.Errorf("create product %s: %w", ps.name, err)
				}
				summary.ProductsCreated++
			} else if err != nil {
				return fmt.Errorf("find product %s: %w", ps.name, err)
			}
			products[ps.name] = p.ID
		}

		// 0.25 kg of flour and 0.01 l of oil make one dough ball
		dough, created, err := findOrCreateRecipe(tx, "Pizza dough", 1,
			productLine(products["Flour"], 0.25),
			productLine(products["Olive oil"], 0.01),
		)
		if err != nil {
			return err
		}
		if created {
			summary.RecipesCreated++
		}

		var dish models.Dish
		err = tx.Where("name = ?", "Margherita").First(&dish).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("find dish: %w", err)
		}
		dish = models.Dish{
			Name:      "Margherita",
			SoldCount: 120,
			Ingredients: []models.DishIngredient{
				{IngredientRef: recipeLine(dough.ID, 1)},
				{IngredientRef: productLine(products["Mozzarella"], 0.125)},
				{IngredientRef: productLine(products["Tomato sauce"], 0.08)},
				{IngredientRef: productLine(products["Basil"], 0.004)},
				{IngredientRef: productLine(products["Pizza box"], 1)},
			},
		}
		if err := tx.Create(&dish).Error; err != nil {
			return fmt.Errorf("create dish: %w", err)
		}
		summary.DishesCreated++

		day := time.Now().UTC().Truncate(24 * time.Hour)
		waste := []models.WasteRecord{
			{ProductID: products["Mozzarella"], Quantity: 0.4, Date: day.AddDate(0, 0, -2), Reason: "expired"},
			{ProductID: products["Basil"], Quantity: 0.05, Date: day.AddDate(0, 0, -1), Reason: "wilted"},
			{ProductID: products["Flour"], Quantity: 1, Date: day.AddDate(0, 0, -1), Reason: "spilled"},
		}
		if err := tx.Create(&waste).Error; err != nil {
			return fmt.Errorf("create waste records: %w", err)
		}
		summary.WasteCreated = len(waste)

		meals := []models.PersonalMealRecord{
			{DishID: dish.ID, Count: 2, Date: day.AddDate(0, 0, -1), StaffName: "Ivan"},
			{DishID: dish.ID, Count: 1, Date: day, StaffName: "Maria"},
		}
		if err := tx.Create(&meals).Error; err != nil {
			return fmt.Errorf("create personal meals: %w", err)
		}
		summary.MealsCreated = len(meals)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"products": summary.ProductsCreated,
		"recipes":  summary.RecipesCreated,
		"dishes":   summary.DishesCreated,
		"waste":    summary.WasteCreated,
		"meals":    summary.MealsCreated,
	}).Info("demo data seeded")
	return summary, nil
}

func findOrCreateRecipe(tx *gorm.DB, name string, portion float64, lines ...models.IngredientRef) (*models.Recipe, bool, error) {
	var r models.Recipe
	err := tx.Where("name = ?", name).First(&r).Error
	if err == nil {
		return &r, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("find recipe %s: %w", name, err)
	}
	r = models.Recipe{Name: name, PortionSize: portion}
	for _, l := range lines {
		r.Ingredients = append(r.Ingredients, models.RecipeIngredient{IngredientRef: l})
	}
	if err := tx.Create(&r).Error; err != nil {
		return nil, false, fmt.Errorf("create recipe %s: %w", name, err)
	}
	return &r, true, nil
}

func productLine(productID string, qty float64) models.IngredientRef {
	return models.IngredientRef{Kind: models.IngredientKindProduct, ProductID: &productID, Quantity: qty}
}

func recipeLine(recipeID string, qty float64) models.IngredientRef {
	return models.IngredientRef{Kind: models.IngredientKindRecipe, SubRecipeID: &recipeID, Quantity: qty}
}
