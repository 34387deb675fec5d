package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/example/ec-order-lifecycle/internal/config"
	"github.com/example/ec-order-lifecycle/internal/domain/order"
	"github.com/example/ec-order-lifecycle/internal/email"
	"github.com/example/ec-order-lifecycle/internal/infrastructure/kafka"
	"github.com/example/ec-order-lifecycle/internal/infrastructure/store"
	"github.com/example/ec-order-lifecycle/internal/notifier"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorker()
	if err != nil {
		log.Fatalf("[Notifier] Invalid configuration: %v", err)
	}
	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("[Notifier] KAFKA_BROKERS environment variable is required")
	}

	log.Println("[Notifier] ========================================")
	log.Println("[Notifier] EC Shop - Email Notification Service")
	log.Println("[Notifier] ========================================")
	log.Printf("[Notifier] Kafka: %v", cfg.KafkaBrokers)
	log.Printf("[Notifier] Topic: %s", cfg.KafkaTopic)
	log.Printf("[Notifier] Group: %s", cfg.KafkaGroup)
	log.Printf("[Notifier] SMTP: %s:%s", cfg.SMTPHost, cfg.SMTPPort)
	log.Printf("[Notifier] From: %s", cfg.SMTPFrom)

	// Status emails need the customer address from the order, so the
	// notifier reads orders from the same event store as the API
	var eventStore store.EventStoreInterface
	switch cfg.EventStore {
	case config.StoreDynamoDB:
		client, err := store.ConnectDynamoDB(ctx, cfg.AWSRegion, cfg.DynamoEndpoint)
		if err != nil {
			log.Fatalf("[Notifier] Failed to create DynamoDB client: %v", err)
		}
		eventStore = store.NewDynamoEventStore(client, cfg.DynamoTable, cfg.DynamoSnapshot, nil)
	case config.StorePostgres:
		db, err := store.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("[Notifier] Failed to connect to PostgreSQL: %v", err)
		}
		defer db.Close()
		eventStore = store.NewPostgresEventStore(db, nil)
	default:
		log.Fatalf("[Notifier] EVENT_STORE %q is not shared with the API", cfg.EventStore)
	}
	log.Printf("[Notifier] Reading orders from %s", cfg.EventStore)

	orders := order.NewService(eventStore, nil)
	emailSvc := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	handler := notifier.NewHandler(emailSvc, orders)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroup)
	defer consumer.Close()

	log.Println("[Notifier] Starting event consumer...")
	if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[Notifier] Consumer error: %v", err)
	}
	log.Println("[Notifier] Shutting down...")
}
