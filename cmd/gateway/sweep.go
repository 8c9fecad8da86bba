package main

import (
	"context"
	"log"
	"time"

	invhandler "vendra-system/internal/services/inventory/handler"
)

func runSweepLoop(ctx context.Context, inventory *invhandler.InventoryHandler, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			resp, err := inventory.RunSweep(ctx)
			if err != nil {
				log.Printf("Expiry sweep failed: %v", err)
				continue
			}
			if resp.ReleasedSlots > 0 || resp.ExpiredOrders > 0 || resp.ExpiredUnits > 0 {
				log.Printf("Expiry sweep: %d slots released, %d orders expired, %d units expired",
					resp.ReleasedSlots, resp.ExpiredOrders, resp.ExpiredUnits)
			}
		}
	}
}
