package api

import (
	"net/http"

	"stockledger/server/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// InventoryController serves snapshots and the reconciliation reads
// (outbound breakdown, variance row and grid).
type InventoryController struct {
	snapshots *services.SnapshotService
	outbound  *services.OutboundService
	variance  *services.VarianceService
	logger    *logrus.Logger
}

func NewInventoryController(snapshots *services.SnapshotService, outbound *services.OutboundService, variance *services.VarianceService, logger *logrus.Logger) *InventoryController {
	return &InventoryController{
		snapshots: snapshots,
		outbound:  outbound,
		variance:  variance,
		logger:    logger,
	}
}

type createSnapshotRequest struct {
	ProductID string `json:"product_id"`
	services.SnapshotInput
}

// GetSnapshots GET /api/v1/inventory/snapshots
func (c *InventoryController) GetSnapshots(ctx *gin.Context) {
	snapshots, err := c.snapshots.List(ctx.Request.Context())
	if err != nil {
		respondError(ctx, c.logger, "GetSnapshots", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"snapshots": snapshots})
}

// GetSnapshot GET /api/v1/inventory/snapshots/:product_id
func (c *InventoryController) GetSnapshot(ctx *gin.Context) {
	snapshot, err := c.snapshots.Get(ctx.Request.Context(), ctx.Param("product_id"))
	if err != nil {
		respondError(ctx, c.logger, "GetSnapshot", err)
		return
	}
	ctx.JSON(http.StatusOK, snapshot)
}

// CreateSnapshot POST /api/v1/inventory/snapshots
func (c *InventoryController) CreateSnapshot(ctx *gin.Context) {
	var req createSnapshotRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondBindError(ctx, err)
		return
	}
	snapshot, err := c.snapshots.Create(ctx.Request.Context(), req.ProductID, req.SnapshotInput)
	if err != nil {
		respondError(ctx, c.logger, "CreateSnapshot", err)
		return
	}
	ctx.JSON(http.StatusCreated, snapshot)
}

// UpdateSnapshot PATCH /api/v1/inventory/snapshots/:product_id
func (c *InventoryController) UpdateSnapshot(ctx *gin.Context) {
	var patch services.SnapshotPatch
	if err := ctx.ShouldBindJSON(&patch); err != nil {
		respondBindError(ctx, err)
		return
	}
	snapshot, err := c.snapshots.Update(ctx.Request.Context(), ctx.Param("product_id"), patch)
	if err != nil {
		respondError(ctx, c.logger, "UpdateSnapshot", err)
		return
	}
	ctx.JSON(http.StatusOK, snapshot)
}

// UpsertSnapshot PUT /api/v1/inventory/snapshots/:product_id
func (c *InventoryController) UpsertSnapshot(ctx *gin.Context) {
	var input services.SnapshotInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindError(ctx, err)
		return
	}
	snapshot, err := c.snapshots.Upsert(ctx.Request.Context(), ctx.Param("product_id"), input)
	if err != nil {
		respondError(ctx, c.logger, "UpsertSnapshot", err)
		return
	}
	ctx.JSON(http.StatusOK, snapshot)
}

// ImportSnapshots POST /api/v1/inventory/snapshots/import (multipart, field "file")
// Accepts XLSX or CSV count sheets.
func (c *InventoryController) ImportSnapshots(ctx *gin.Context) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "file is required",
			"details": err.Error(),
		})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respondError(ctx, c.logger, "ImportSnapshots", err)
		return
	}
	defer file.Close()

	result, err := c.snapshots.ImportSheet(ctx.Request.Context(), file, fileHeader.Filename)
	if err != nil {
		respondError(ctx, c.logger, "ImportSnapshots", err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// GetOutbound GET /api/v1/inventory/products/:id/outbound?from=&to=
func (c *InventoryController) GetOutbound(ctx *gin.Context) {
	period, err := parsePeriod(ctx)
	if err != nil {
		respondError(ctx, c.logger, "GetOutbound", err)
		return
	}
	breakdown, err := c.outbound.Outbound(ctx.Request.Context(), ctx.Param("id"), period)
	if err != nil {
		respondError(ctx, c.logger, "GetOutbound", err)
		return
	}
	ctx.JSON(http.StatusOK, breakdown)
}

// GetVariance GET /api/v1/inventory/products/:id/variance?from=&to=
func (c *InventoryController) GetVariance(ctx *gin.Context) {
	period, err := parsePeriod(ctx)
	if err != nil {
		respondError(ctx, c.logger, "GetVariance", err)
		return
	}
	row, err := c.variance.Variance(ctx.Request.Context(), ctx.Param("id"), period)
	if err != nil {
		respondError(ctx, c.logger, "GetVariance", err)
		return
	}
	ctx.JSON(http.StatusOK, row)
}

// GetVarianceGrid GET /api/v1/inventory/variance?from=&to=
func (c *InventoryController) GetVarianceGrid(ctx *gin.Context) {
	period, err := parsePeriod(ctx)
	if err != nil {
		respondError(ctx, c.logger, "GetVarianceGrid", err)
		return
	}
	rows, err := c.variance.Grid(ctx.Request.Context(), period)
	if err != nil {
		respondError(ctx, c.logger, "GetVarianceGrid", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"rows": rows})
}
