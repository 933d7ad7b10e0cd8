package api

import (
	"net/http"
	"strconv"

	"stockledger/server/internal/models"
	"stockledger/server/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PurchaseOrderController manages supplier orders
type PurchaseOrderController struct {
	orderService *services.PurchaseOrderService
	logger       *logrus.Logger
}

func NewPurchaseOrderController(orderService *services.PurchaseOrderService, logger *logrus.Logger) *PurchaseOrderController {
	return &PurchaseOrderController{
		orderService: orderService,
		logger:       logger,
	}
}

// GetPurchaseOrders GET /api/v1/purchase-orders?status=...&supplier=...&limit=...
func (c *PurchaseOrderController) GetPurchaseOrders(ctx *gin.Context) {
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}

	orders, err := c.orderService.ListPurchaseOrders(ctx.Request.Context(), services.PurchaseOrderFilter{
		Status:   models.PurchaseOrderStatus(ctx.Query("status")),
		Supplier: ctx.Query("supplier"),
		Limit:    limit,
	})
	if err != nil {
		respondError(ctx, c.logger, "GetPurchaseOrders", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"orders": orders,
	})
}

// GetPurchaseOrder GET /api/v1/purchase-orders/:id
func (c *PurchaseOrderController) GetPurchaseOrder(ctx *gin.Context) {
	order, err := c.orderService.GetPurchaseOrder(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, c.logger, "GetPurchaseOrder", err)
		return
	}
	ctx.JSON(http.StatusOK, order)
}

// CreatePurchaseOrder POST /api/v1/purchase-orders
func (c *PurchaseOrderController) CreatePurchaseOrder(ctx *gin.Context) {
	var input services.PurchaseOrderInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindError(ctx, err)
		return
	}

	order, err := c.orderService.CreatePurchaseOrder(ctx.Request.Context(), input)
	if err != nil {
		respondError(ctx, c.logger, "CreatePurchaseOrder", err)
		return
	}
	ctx.JSON(http.StatusCreated, order)
}

// UpdatePurchaseOrder PUT /api/v1/purchase-orders/:id
// Lines can change only while the order is not confirmed.
func (c *PurchaseOrderController) UpdatePurchaseOrder(ctx *gin.Context) {
	var input services.PurchaseOrderInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindError(ctx, err)
		return
	}

	order, err := c.orderService.UpdatePurchaseOrder(ctx.Request.Context(), ctx.Param("id"), input)
	if err != nil {
		respondError(ctx, c.logger, "UpdatePurchaseOrder", err)
		return
	}
	ctx.JSON(http.StatusOK, order)
}

// UpdateStatus POST /api/v1/purchase-orders/:id/status
// Re-confirming answers 200 with duplicate_activation=true.
func (c *PurchaseOrderController) UpdateStatus(ctx *gin.Context) {
	var input services.StatusTransitionInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindError(ctx, err)
		return
	}

	result, err := c.orderService.UpdateStatus(ctx.Request.Context(), ctx.Param("id"), input)
	if err != nil {
		respondError(ctx, c.logger, "UpdateStatus", err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}
