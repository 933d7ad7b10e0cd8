package api

import (
	"net/http"
	"time"

	"stockledger/server/internal/services"
	"stockledger/server/internal/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Services bundles what the HTTP layer needs.
type Services struct {
	Catalog    *services.CatalogService
	Ledger     *services.LedgerService
	Orders     *services.PurchaseOrderService
	Outbound   *services.OutboundService
	Snapshots  *services.SnapshotService
	Variance   *services.VarianceService
	Stocktakes *services.StocktakeService
	Inputs     *services.InputsService
}

type RouterConfig struct {
	AllowedOrigins []string
	Logger         *logrus.Logger
	Hub            *Hub        // nil disables the websocket endpoint
	Health         HealthCheck // nil reports ok
}

// NewRouter builds the gin engine with every /api/v1 route.
func NewRouter(cfg RouterConfig, svc Services) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = utils.DiscardLogger()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(utils.RequestLogger(logger))
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	r.GET("/api/v1/health", func(c *gin.Context) {
		if cfg.Health != nil {
			if err := cfg.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "degraded",
					"details": err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "stock ledger",
		})
	})

	apiGroup := r.Group("/api/v1")

	catalogController := NewCatalogController(svc.Catalog, logger)
	catalogGroup := apiGroup.Group("/catalog")
	{
		catalogGroup.GET("/products", catalogController.GetProducts)
		catalogGroup.POST("/products", catalogController.CreateProduct)
		catalogGroup.GET("/products/:id", catalogController.GetProduct)
		catalogGroup.PUT("/products/:id", catalogController.UpdateProduct)
	}

	orderController := NewPurchaseOrderController(svc.Orders, logger)
	orderGroup := apiGroup.Group("/purchase-orders")
	{
		orderGroup.GET("", orderController.GetPurchaseOrders)
		orderGroup.POST("", orderController.CreatePurchaseOrder)
		orderGroup.GET("/:id", orderController.GetPurchaseOrder)
		orderGroup.PUT("/:id", orderController.UpdatePurchaseOrder)
		orderGroup.POST("/:id/status", orderController.UpdateStatus)
	}

	movementController := NewMovementController(svc.Ledger, logger)
	inventoryController := NewInventoryController(svc.Snapshots, svc.Outbound, svc.Variance, logger)
	stocktakeController := NewStocktakeController(svc.Stocktakes, logger)
	inventoryGroup := apiGroup.Group("/inventory")
	{
		inventoryGroup.GET("/movements", movementController.GetMovements)
		inventoryGroup.POST("/movements", movementController.CreateMovement)
		inventoryGroup.GET("/movements/:id", movementController.GetMovement)
		inventoryGroup.PUT("/movements/:id", movementController.CorrectMovement)
		inventoryGroup.DELETE("/movements/:id", movementController.DeleteMovement)
		inventoryGroup.GET("/movements/:id/corrections", movementController.GetCorrections)

		inventoryGroup.GET("/products/:id/movements", movementController.GetProductMovements)
		inventoryGroup.GET("/products/:id/outbound", inventoryController.GetOutbound)
		inventoryGroup.GET("/products/:id/variance", inventoryController.GetVariance)
		inventoryGroup.GET("/products/:id/stocktakes", stocktakeController.GetStocktakes)
		inventoryGroup.POST("/products/:id/stocktakes", stocktakeController.CreateStocktake)

		inventoryGroup.GET("/variance", inventoryController.GetVarianceGrid)

		inventoryGroup.GET("/snapshots", inventoryController.GetSnapshots)
		inventoryGroup.POST("/snapshots", inventoryController.CreateSnapshot)
		inventoryGroup.POST("/snapshots/import", inventoryController.ImportSnapshots)
		inventoryGroup.GET("/snapshots/:product_id", inventoryController.GetSnapshot)
		inventoryGroup.PUT("/snapshots/:product_id", inventoryController.UpsertSnapshot)
		inventoryGroup.PATCH("/snapshots/:product_id", inventoryController.UpdateSnapshot)
	}

	inputsController := NewInputsController(svc.Inputs, logger)
	inputsGroup := apiGroup.Group("/inputs")
	{
		inputsGroup.GET("/waste", inputsController.GetWaste)
		inputsGroup.GET("/personal-meals", inputsController.GetPersonalMeals)
		inputsGroup.GET("/dishes", inputsController.GetDishes)
	}

	if cfg.Hub != nil {
		apiGroup.GET("/ws/inventory", cfg.Hub.ServeInventoryWS)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}
