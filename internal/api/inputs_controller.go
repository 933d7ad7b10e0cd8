package api

import (
	"net/http"

	"stockledger/server/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// InputsController is read-only
type InputsController struct {
	inputs *services.InputsService
	logger *logrus.Logger
}

func NewInputsController(inputs *services.InputsService, logger *logrus.Logger) *InputsController {
	return &InputsController{inputs: inputs, logger: logger}
}

// GetWaste GET /api/v1/inputs/waste?product_id=&from=&to=
func (c *InputsController) GetWaste(ctx *gin.Context) {
	period, err := parsePeriod(ctx)
	if err != nil {
		respondError(ctx, c.logger, "GetWaste", err)
		return
	}
	records, err := c.inputs.ListWaste(ctx.Request.Context(), ctx.Query("product_id"), period)
	if err != nil {
		respondError(ctx, c.logger, "GetWaste", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"waste": records})
}

// GetPersonalMeals GET /api/v1/inputs/personal-meals?dish_id=&from=&to=
func (c *InputsController) GetPersonalMeals(ctx *gin.Context) {
	period, err := parsePeriod(ctx)
	if err != nil {
		respondError(ctx, c.logger, "GetPersonalMeals", err)
		return
	}
	records, err := c.inputs.ListPersonalMeals(ctx.Request.Context(), ctx.Query("dish_id"), period)
	if err != nil {
		respondError(ctx, c.logger, "GetPersonalMeals", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"personal_meals": records})
}

// GetDishes GET /api/v1/inputs/dishes
func (c *InputsController) GetDishes(ctx *gin.Context) {
	dishes, err := c.inputs.ListDishes(ctx.Request.Context())
	if err != nil {
		respondError(ctx, c.logger, "GetDishes", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"dishes": dishes})
}
