package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vendra-system/config"
	"vendra-system/internal/database"
	"vendra-system/internal/notify"
	"vendra-system/internal/services/expiry"
	invhandler "vendra-system/internal/services/inventory/handler"
)

// Standalone expiry sweeper for deployments that want the sweep isolated
// from the API gateway. Runs once immediately, then on the configured
// interval until interrupted.
func main() {
	cfg := config.LoadConfig()

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name)
	db, err := database.NewConnection(dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	redisClient := config.NewRedisClient(cfg.Redis)
	notifier := notify.NewPublisher(redisClient)
	inventory := invhandler.NewInventoryHandler(db, redisClient, notifier, expiry.SystemClock{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interval := cfg.Sweep.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	log.Printf("Sweeper running every %s", interval)
	sweep(ctx, inventory)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Sweeper shutting down")
			return
		case <-ticker.C:
			sweep(ctx, inventory)
		}
	}
}

func sweep(ctx context.Context, inventory *invhandler.InventoryHandler) {
	resp, err := inventory.RunSweep(ctx)
	if err != nil {
		log.Printf("Expiry sweep failed: %v", err)
		return
	}
	log.Printf("Expiry sweep: %d slots released, %d orders expired, %d units expired",
		resp.ReleasedSlots, resp.ExpiredOrders, resp.ExpiredUnits)
}
