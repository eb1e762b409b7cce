package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/sss97133/nuke-sub017/core"
	"github.com/sss97133/nuke-sub017/engine"
	"github.com/sss97133/nuke-sub017/events"
	"github.com/sss97133/nuke-sub017/ledger"
)

// Configuration environment variables:
//
//	AUCTIOND_PORT              TCP port (default 5000)
//	AUCTIOND_MAX_WORKERS       required, bound on concurrent connections
//	AUCTIOND_LEDGER_DIR        directory for the durable bid ledger;
//	                           empty runs on the in-memory ledger
//	AUCTIOND_AMQP_URL          RabbitMQ URL for event publishing;
//	                           empty disables publishing
//	AUCTIOND_TICK_INTERVAL_SEC lifecycle tick interval (default 30)
func main() {
	ctx := context.Background()

	var led ledger.Ledger
	if dir := os.Getenv("AUCTIOND_LEDGER_DIR"); dir != "" {
		fileLedger, err := ledger.NewFileLedger(dir)
		if err != nil {
			log.Fatalf("ERROR: Failed to open ledger at %s: %v", dir, err)
		}
		defer func() {
			if err := fileLedger.Close(); err != nil {
				log.Printf("ERROR: Failed to close ledger: %v", err)
			}
		}()
		led = fileLedger
		log.Printf("INFO: Using file ledger at %s", dir)
	} else {
		led = ledger.NewMemoryLedger()
		log.Printf("WARNING: No AUCTIOND_LEDGER_DIR set, bids will not survive restart")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if url := os.Getenv("AUCTIOND_AMQP_URL"); url != "" {
		amqpPublisher, err := events.NewAMQPPublisher(url, events.DefaultExchange)
		if err != nil {
			log.Fatalf("ERROR: Failed to connect event publisher: %v", err)
		}
		defer func() {
			if err := amqpPublisher.Close(); err != nil {
				log.Printf("ERROR: Failed to close event publisher: %v", err)
			}
		}()
		publisher = amqpPublisher
		log.Printf("INFO: Publishing events to %s", events.DefaultExchange)
	} else {
		log.Printf("WARNING: No AUCTIOND_AMQP_URL set, events will not be published")
	}

	auctions := engine.NewAuctionStore()
	settlements := engine.NewSettlementStore()
	gateway := engine.NewGateway(auctions, led, publisher)
	controller := engine.NewController(auctions, led, settlements, publisher, core.DefaultFeePolicy())

	tickInterval := time.Duration(getEnvIntDefault("AUCTIOND_TICK_INTERVAL_SEC", 30)) * time.Second
	controller.StartTickLoop(ctx, tickInterval)
	log.Printf("INFO: Lifecycle tick loop started (interval: %s)", tickInterval)

	port := getEnvIntDefault("AUCTIOND_PORT", 5000)
	server := NewAuctionServer(port, auctions, gateway, controller, led, publisher)
	log.Fatal(server.Start(ctx))
}
