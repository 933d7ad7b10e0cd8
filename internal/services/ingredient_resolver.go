package services

import (
	"context"
	"errors"
	"fmt"

	"stockledger/server/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// IngredientResolver answers "how much of product P goes into one unit of
// this dish". Recipe lines are expanded through the sub-recipe, scaled by
// its portion size. Loaded recipes are cached for the resolver's lifetime,
// so one resolver serves a single read.
type IngredientResolver struct {
	db      *gorm.DB
	logger  *logrus.Logger
	recipes map[string]*models.Recipe
	skipped map[string]bool
}

func NewIngredientResolver(db *gorm.DB, logger *logrus.Logger) *IngredientResolver {
	return &IngredientResolver{
		db:      db,
		logger:  logger,
		recipes: map[string]*models.Recipe{},
		skipped: map[string]bool{},
	}
}

// recipeError marks a recipe tree that cannot be expanded: a dangling
// sub-recipe, a cycle, a bad portion size or a malformed line.
type recipeError struct {
	dish   string
	recipe string
	reason string
}

func (e *recipeError) Error() string {
	msg := "dish " + e.dish
	if e.recipe != "" {
		msg += ": recipe " + e.recipe
	}
	return msg + ": " + e.reason
}

// QuantityPerDish sums every line of the dish that resolves to productID.
func (r *IngredientResolver) QuantityPerDish(ctx context.Context, dish *models.Dish, productID string) (float64, error) {
	lines := make([]models.IngredientRef, len(dish.Ingredients))
	for i, ing := range dish.Ingredients {
		lines[i] = ing.IngredientRef
	}
	qty, err := r.resolve(ctx, lines, productID, map[string]bool{})
	if err != nil {
		var rerr *recipeError
		if errors.As(err, &rerr) {
			rerr.dish = dish.Name
			return 0, rerr
		}
		return 0, fmt.Errorf("dish %s: %w", dish.Name, err)
	}
	return qty, nil
}

// skip reports whether err only concerns a broken recipe tree. Such a dish
// is left out of every sum and logged once per resolver; any other error
// still fails the read.
func (r *IngredientResolver) skip(dish *models.Dish, err error) bool {
	var rerr *recipeError
	if !errors.As(err, &rerr) {
		return false
	}
	if !r.skipped[dish.ID] {
		r.skipped[dish.ID] = true
		r.logger.WithFields(logrus.Fields{
			"dish_id":   dish.ID,
			"dish":      dish.Name,
			"recipe_id": rerr.recipe,
			"reason":    rerr.reason,
		}).Warn("dish left out of outbound: recipe cannot be resolved")
	}
	return true
}

// resolve walks ingredient lines depth first. path holds the recipes on the
// current branch; meeting one of them again is a cycle.
func (r *IngredientResolver) resolve(ctx context.Context, lines []models.IngredientRef, productID string, path map[string]bool) (float64, error) {
	total := 0.0
	for _, line := range lines {
		switch line.Kind {
		case models.IngredientKindProduct:
			if line.ProductID == nil {
				return 0, &recipeError{reason: "product line without product_id"}
			}
			if *line.ProductID == productID {
				total += line.Quantity
			}

		case models.IngredientKindRecipe:
			if line.SubRecipeID == nil {
				return 0, &recipeError{reason: "recipe line without sub_recipe_id"}
			}
			subID := *line.SubRecipeID
			if path[subID] {
				return 0, &recipeError{recipe: subID, reason: "recipe cycle"}
			}
			sub, err := r.recipe(ctx, subID)
			if err != nil {
				return 0, err
			}
			if sub.PortionSize <= 0 {
				return 0, &recipeError{recipe: subID, reason: "portion size must be positive"}
			}

			path[subID] = true
			perBatch, err := r.resolve(ctx, recipeLines(sub), productID, path)
			delete(path, subID)
			if err != nil {
				return 0, err
			}
			total += line.Quantity * perBatch / sub.PortionSize

		default:
			return 0, &recipeError{reason: fmt.Sprintf("unknown ingredient kind %q", line.Kind)}
		}
	}
	return total, nil
}

func (r *IngredientResolver) recipe(ctx context.Context, id string) (*models.Recipe, error) {
	if recipe, ok := r.recipes[id]; ok {
		return recipe, nil
	}
	var recipe models.Recipe
	err := r.db.WithContext(ctx).Preload("Ingredients").First(&recipe, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &recipeError{recipe: id, reason: "recipe not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("load recipe %s: %w", id, err)
	}
	r.recipes[id] = &recipe
	return &recipe, nil
}

func recipeLines(recipe *models.Recipe) []models.IngredientRef {
	lines := make([]models.IngredientRef, len(recipe.Ingredients))
	for i, ing := range recipe.Ingredients {
		lines[i] = ing.IngredientRef
	}
	return lines
}
