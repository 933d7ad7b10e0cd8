package api

import (
	"net/http"

	"stockledger/server/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CatalogController serves products
type CatalogController struct {
	catalog *services.CatalogService
	logger  *logrus.Logger
}

func NewCatalogController(catalog *services.CatalogService, logger *logrus.Logger) *CatalogController {
	return &CatalogController{catalog: catalog, logger: logger}
}

// GetProducts GET /api/v1/catalog/products
func (c *CatalogController) GetProducts(ctx *gin.Context) {
	products, err := c.catalog.ListProducts(ctx.Request.Context())
	if err != nil {
		respondError(ctx, c.logger, "GetProducts", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"products": products})
}

// GetProduct GET /api/v1/catalog/products/:id
func (c *CatalogController) GetProduct(ctx *gin.Context) {
	product, err := c.catalog.GetProduct(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, c.logger, "GetProduct", err)
		return
	}
	ctx.JSON(http.StatusOK, product)
}

// CreateProduct POST /api/v1/catalog/products
func (c *CatalogController) CreateProduct(ctx *gin.Context) {
	var input services.ProductInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindError(ctx, err)
		return
	}
	product, err := c.catalog.CreateProduct(ctx.Request.Context(), input)
	if err != nil {
		respondError(ctx, c.logger, "CreateProduct", err)
		return
	}
	ctx.JSON(http.StatusCreated, product)
}

// UpdateProduct PUT /api/v1/catalog/products/:id
// Price and waste edits do not touch stored movement costs.
func (c *CatalogController) UpdateProduct(ctx *gin.Context) {
	var input services.ProductInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindError(ctx, err)
		return
	}
	product, err := c.catalog.UpdateProduct(ctx.Request.Context(), ctx.Param("id"), input)
	if err != nil {
		respondError(ctx, c.logger, "UpdateProduct", err)
		return
	}
	ctx.JSON(http.StatusOK, product)
}
