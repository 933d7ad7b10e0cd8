package api

import (
	"net/http"

	"stockledger/server/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type StocktakeController struct {
	stocktakes *services.StocktakeService
	logger     *logrus.Logger
}

func NewStocktakeController(stocktakes *services.StocktakeService, logger *logrus.Logger) *StocktakeController {
	return &StocktakeController{stocktakes: stocktakes, logger: logger}
}

// CreateStocktake POST /api/v1/inventory/products/:id/stocktakes
func (c *StocktakeController) CreateStocktake(ctx *gin.Context) {
	var input services.StocktakeInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindError(ctx, err)
		return
	}
	snapshot, err := c.stocktakes.CreateTheoreticalSnapshot(ctx.Request.Context(), ctx.Param("id"), input)
	if err != nil {
		respondError(ctx, c.logger, "CreateStocktake", err)
		return
	}
	ctx.JSON(http.StatusCreated, snapshot)
}

// GetStocktakes GET /api/v1/inventory/products/:id/stocktakes
func (c *StocktakeController) GetStocktakes(ctx *gin.Context) {
	snapshots, err := c.stocktakes.List(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, c.logger, "GetStocktakes", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"stocktakes": snapshots})
}
