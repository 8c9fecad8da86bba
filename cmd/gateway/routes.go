package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"vendra-system/config"
	"vendra-system/internal/database"
	"vendra-system/internal/gateway/handlers"
	"vendra-system/internal/gateway/middleware"
	"vendra-system/internal/notify"
	cataloghandler "vendra-system/internal/services/catalog/handler"
	"vendra-system/internal/services/expiry"
	invhandler "vendra-system/internal/services/inventory/handler"
	orderhandler "vendra-system/internal/services/orders/handler"
	userhandler "vendra-system/internal/services/user/handler"
	"vendra-system/internal/utils"
)

func main() {
	cfg := config.LoadConfig()
	utils.SetJWTSecret(cfg.Auth.JWTSecret)

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name)
	db, err := database.NewConnection(dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.MigrateAll(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	redisClient := config.NewRedisClient(cfg.Redis)
	notifier := notify.NewPublisher(redisClient)
	clock := expiry.SystemClock{}

	users := userhandler.NewUserHandler(db, redisClient, cfg.Auth.TokenTTL)
	catalog := cataloghandler.NewCatalogHandler(db, redisClient, notifier)
	inventory := invhandler.NewInventoryHandler(db, redisClient, notifier, clock)
	orders := orderhandler.NewOrderHandler(db, redisClient, notifier, clock)

	userHTTP := handlers.NewUserHTTPHandler(users)
	catalogHTTP := handlers.NewCatalogHTTPHandler(catalog)
	inventoryHTTP := handlers.NewInventoryHTTPHandler(inventory)
	orderHTTP := handlers.NewOrderHTTPHandler(orders)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cache invalidation fan-in: any instance that writes publishes a change
	// event; every instance drops its cached reads for the touched table.
	subscriber := notify.NewSubscriber(redisClient, func(ev notify.Event) {
		switch ev.Table {
		case notify.TableInventory:
			inventory.InvalidateInventoryCaches(ctx, ev.ID)
		case notify.TableOrders:
			orders.InvalidateOrderCaches(ctx, ev.ID)
		case notify.TableCatalog:
			catalog.InvalidateCatalogCaches(ctx)
		}
	})
	go subscriber.Run(ctx)

	go runSweepLoop(ctx, inventory, cfg.Sweep.Interval)

	r := gin.Default()

	r.Use(middleware.CORS())
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit(cfg.Server.RateLimit))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// --- Public API Group ---
	public := r.Group("/api/v1")
	{
		auth := public.Group("/auth")
		{
			auth.POST("/login", userHTTP.Login)
			auth.POST("/register", userHTTP.Register)
		}
	}

	// --- Protected API Group ---
	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth())
	{
		catalogGroup := protected.Group("/catalog")
		{
			catalogGroup.POST("/products", catalogHTTP.CreateProduct)
			catalogGroup.GET("/products", catalogHTTP.ListProducts)
			catalogGroup.PUT("/products/:id", catalogHTTP.UpdateProduct)

			catalogGroup.POST("/packages", catalogHTTP.CreatePackage)
			catalogGroup.GET("/packages", catalogHTTP.ListPackages)
			catalogGroup.PUT("/packages/:id", catalogHTTP.UpdatePackage)

			catalogGroup.POST("/customers", catalogHTTP.CreateCustomer)
			catalogGroup.GET("/customers", catalogHTTP.ListCustomers)
			catalogGroup.PUT("/customers/:id", catalogHTTP.UpdateCustomer)
		}

		inventoryGroup := protected.Group("/inventory")
		{
			inventoryGroup.POST("/units", inventoryHTTP.CreateUnit)
			inventoryGroup.GET("/units", inventoryHTTP.ListUnits)
			inventoryGroup.GET("/units/:id", inventoryHTTP.GetUnit)
			inventoryGroup.PUT("/units/:id", inventoryHTTP.UpdateUnit)
			inventoryGroup.DELETE("/units/:id", inventoryHTTP.DeleteUnit)
			inventoryGroup.POST("/units/:id/renew", inventoryHTTP.RenewUnit)
			inventoryGroup.GET("/candidates", inventoryHTTP.ResolveCandidates)
			inventoryGroup.POST("/sweep", inventoryHTTP.RunSweep)
		}

		ordersGroup := protected.Group("/orders")
		{
			ordersGroup.POST("", orderHTTP.CreateOrder)
			ordersGroup.GET("", orderHTTP.ListOrders)
			ordersGroup.GET("/:id", orderHTTP.GetOrder)
			ordersGroup.PUT("/:id", orderHTTP.UpdateOrder)
			ordersGroup.DELETE("/:id", orderHTTP.DeleteOrder)
			ordersGroup.POST("/:id/cancel", orderHTTP.CancelOrder)
			ordersGroup.POST("/:id/renew", orderHTTP.RenewOrder)
			ordersGroup.PUT("/:id/renewals", orderHTTP.SetRenewalPayment)
			ordersGroup.GET("/:id/verify", orderHTTP.VerifyBinding)
		}
	}

	log.Printf("Gateway listening on :%s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start gateway: %v", err)
	}
}
