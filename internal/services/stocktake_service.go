package services

import (
	"context"
	"fmt"
	"time"

	"stockledger/server/internal/events"
	"stockledger/server/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// StocktakeService records physical counts against the theoretical stock
// accumulated since the previous count.
type StocktakeService struct {
	db        *gorm.DB
	logger    *logrus.Logger
	publisher events.Publisher
}

func NewStocktakeService(db *gorm.DB, logger *logrus.Logger, publisher events.Publisher) *StocktakeService {
	return &StocktakeService{db: db, logger: logger, publisher: publisher}
}

type StocktakeInput struct {
	ActualQuantity float64    `json:"actual_quantity" validate:"gte=0"`
	SnapshotDate   *time.Time `json:"snapshot_date"`
	PerformedBy    string     `json:"performed_by" validate:"max=255"`
	Notes          string     `json:"notes"`
}

// CreateTheoreticalSnapshot stores a stocktake for the product.
//
// With a previous stocktake the baseline is its actual quantity and only
// movements dated after it, up to the count date, count. The first
// stocktake of a product starts from the catalog quantity and counts every
// movement dated on or before the count date; movements dated later are
// left for the next stocktake, so consecutive windows never overlap.
// Variance is theoretical - actual, positive on shortage. The catalog
// quantity is set to the counted quantity.
func (s *StocktakeService) CreateTheoreticalSnapshot(ctx context.Context, productID string, input StocktakeInput) (*models.StocktakeSnapshot, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	date := time.Now().UTC()
	if input.SnapshotDate != nil {
		date = input.SnapshotDate.UTC()
	}

	var snapshot models.StocktakeSnapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := lockingRead(tx).First(&product, "id = ?", productID).Error; err != nil {
			return dbError(err, "product "+productID)
		}

		var priors []models.StocktakeSnapshot
		if err := tx.Where("product_id = ?", productID).
			Order("snapshot_date DESC, created_at DESC").
			Limit(1).
			Find(&priors).Error; err != nil {
			return err
		}

		baseline := product.CurrentQuantity
		window := func(db *gorm.DB) *gorm.DB {
			return db.Where("movement_date <= ?", date)
		}
		if len(priors) > 0 {
			prior := priors[0]
			if !date.After(prior.SnapshotDate) {
				return newValidationError("snapshot_date", "must be after the previous stocktake")
			}
			baseline = prior.ActualQuantity
			window = func(db *gorm.DB) *gorm.DB {
				return db.Where("movement_date > ? AND movement_date <= ?", prior.SnapshotDate, date)
			}
		}

		in, err := sumQuantity(tx.Model(&models.StockMovement{}).
			Where("product_id = ? AND direction = ?", productID, models.MovementIn).
			Scopes(window), "quantity")
		if err != nil {
			return err
		}
		out, err := sumQuantity(tx.Model(&models.StockMovement{}).
			Where("product_id = ? AND direction = ?", productID, models.MovementOut).
			Scopes(window), "quantity")
		if err != nil {
			return err
		}

		theoretical := baseline + in - out
		variance := theoretical - input.ActualQuantity
		value, _ := moneyValue(variance, product.EffectiveUnitPrice()).Float64()

		snapshot = models.StocktakeSnapshot{
			ProductID:           productID,
			SnapshotDate:        date,
			InitialQuantity:     baseline,
			InQuantity:          in,
			OutQuantity:         out,
			TheoreticalQuantity: theoretical,
			ActualQuantity:      input.ActualQuantity,
			Variance:            variance,
			VarianceValue:       value,
			PerformedBy:         input.PerformedBy,
			Notes:               input.Notes,
		}
		if err := tx.Create(&snapshot).Error; err != nil {
			return fmt.Errorf("create stocktake: %w", err)
		}

		return tx.Model(&models.Product{}).Where("id = ?", productID).
			Updates(map[string]interface{}{
				"current_quantity": input.ActualQuantity,
				"updated_at":       time.Now().UTC(),
			}).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"product_id":  productID,
		"theoretical": snapshot.TheoreticalQuantity,
		"actual":      snapshot.ActualQuantity,
		"variance":    snapshot.Variance,
	}).Info("stocktake recorded")
	publish(ctx, s.publisher, s.logger, events.New(events.StocktakeRecorded, productID, snapshot))
	return &snapshot, nil
}

// List returns the stocktakes of a product, newest first.
func (s *StocktakeService) List(ctx context.Context, productID string) ([]models.StocktakeSnapshot, error) {
	db := s.db.WithContext(ctx)
	if _, err := findProduct(db, productID); err != nil {
		return nil, err
	}
	var snapshots []models.StocktakeSnapshot
	if err := db.Where("product_id = ?", productID).
		Order("snapshot_date DESC, created_at DESC").
		Find(&snapshots).Error; err != nil {
		return nil, fmt.Errorf("list stocktakes: %w", err)
	}
	return snapshots, nil
}
