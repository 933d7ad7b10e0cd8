package api

import (
	"net/http"
	"strconv"
	"time"

	"stockledger/server/internal/models"
	"stockledger/server/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// MovementController exposes the stock ledger
type MovementController struct {
	ledger *services.LedgerService
	logger *logrus.Logger
}

func NewMovementController(ledger *services.LedgerService, logger *logrus.Logger) *MovementController {
	return &MovementController{ledger: ledger, logger: logger}
}

type movementRequest struct {
	ProductID         string                   `json:"product_id"`
	Direction         models.MovementDirection `json:"direction"`
	Quantity          float64                  `json:"quantity"`
	UnitPrice         *float64                 `json:"unit_price"`
	Source            models.MovementSource    `json:"source"`
	SourceReferenceID *string                  `json:"source_reference_id"`
	MovementDate      *time.Time               `json:"movement_date"`
	Notes             string                   `json:"notes"`
	PerformedBy       string                   `json:"performed_by"`
}

// GetMovements GET /api/v1/inventory/movements?product_id=&direction=&source=&source_reference_id=&from=&to=&limit=
func (c *MovementController) GetMovements(ctx *gin.Context) {
	period, err := parsePeriod(ctx)
	if err != nil {
		respondError(ctx, c.logger, "GetMovements", err)
		return
	}
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "0"))

	movements, err := c.ledger.ListMovements(ctx.Request.Context(), services.MovementFilter{
		ProductID:         ctx.Query("product_id"),
		Direction:         models.MovementDirection(ctx.Query("direction")),
		Source:            models.MovementSource(ctx.Query("source")),
		SourceReferenceID: ctx.Query("source_reference_id"),
		Period:            period,
		Limit:             limit,
	})
	if err != nil {
		respondError(ctx, c.logger, "GetMovements", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"movements": movements})
}

// GetProductMovements GET /api/v1/inventory/products/:id/movements
func (c *MovementController) GetProductMovements(ctx *gin.Context) {
	movements, err := c.ledger.ListByProduct(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, c.logger, "GetProductMovements", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"movements": movements})
}

// GetMovement GET /api/v1/inventory/movements/:id
func (c *MovementController) GetMovement(ctx *gin.Context) {
	movement, err := c.ledger.GetMovement(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, c.logger, "GetMovement", err)
		return
	}
	ctx.JSON(http.StatusOK, movement)
}

// CreateMovement POST /api/v1/inventory/movements
func (c *MovementController) CreateMovement(ctx *gin.Context) {
	var req movementRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondBindError(ctx, err)
		return
	}

	movement := &models.StockMovement{
		ProductID:         req.ProductID,
		Direction:         req.Direction,
		Quantity:          req.Quantity,
		UnitPrice:         req.UnitPrice,
		Source:            req.Source,
		SourceReferenceID: req.SourceReferenceID,
		Notes:             req.Notes,
		PerformedBy:       req.PerformedBy,
	}
	if req.MovementDate != nil {
		movement.MovementDate = req.MovementDate.UTC()
	}

	created, err := c.ledger.Append(ctx.Request.Context(), movement)
	if err != nil {
		respondError(ctx, c.logger, "CreateMovement", err)
		return
	}
	ctx.JSON(http.StatusCreated, created)
}

// CorrectMovement PUT /api/v1/inventory/movements/:id
func (c *MovementController) CorrectMovement(ctx *gin.Context) {
	var input services.MovementCorrectionInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindError(ctx, err)
		return
	}
	movement, err := c.ledger.Correct(ctx.Request.Context(), ctx.Param("id"), input)
	if err != nil {
		respondError(ctx, c.logger, "CorrectMovement", err)
		return
	}
	ctx.JSON(http.StatusOK, movement)
}

// DeleteMovement DELETE /api/v1/inventory/movements/:id?performed_by=&reason=
func (c *MovementController) DeleteMovement(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := c.ledger.Delete(ctx.Request.Context(), id, ctx.Query("performed_by"), ctx.Query("reason")); err != nil {
		respondError(ctx, c.logger, "DeleteMovement", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"deleted": id})
}

// GetCorrections GET /api/v1/inventory/movements/:id/corrections
func (c *MovementController) GetCorrections(ctx *gin.Context) {
	corrections, err := c.ledger.ListCorrections(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, c.logger, "GetCorrections", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"corrections": corrections})
}
