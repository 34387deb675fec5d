package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/example/ec-order-lifecycle/internal/config"
	"github.com/example/ec-order-lifecycle/internal/domain/order"
	"github.com/example/ec-order-lifecycle/internal/email"
	"github.com/example/ec-order-lifecycle/internal/infrastructure/kinesis"
	"github.com/example/ec-order-lifecycle/internal/infrastructure/store"
	"github.com/example/ec-order-lifecycle/internal/notifier"
)

// The DynamoDB deployment streams event store inserts through Kinesis
// instead of Kafka. This function sends the same emails as cmd/notifier.
var emailHandler *notifier.Handler

func init() {
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Fatalf("[Lambda Notifier] Invalid configuration: %v", err)
	}

	client, err := store.ConnectDynamoDB(context.Background(), cfg.AWSRegion, cfg.DynamoEndpoint)
	if err != nil {
		log.Fatalf("[Lambda Notifier] Failed to create DynamoDB client: %v", err)
	}
	eventStore := store.NewDynamoEventStore(client, cfg.DynamoTable, cfg.DynamoSnapshot, nil)

	emailSvc := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	emailHandler = notifier.NewHandler(emailSvc, order.NewService(eventStore, nil))

	log.Printf("[Lambda Notifier] Initialized (table %s, SMTP %s:%s)", cfg.DynamoTable, cfg.SMTPHost, cfg.SMTPPort)
}

func handler(ctx context.Context, batch events.KinesisEvent) (events.KinesisEventResponse, error) {
	log.Printf("[Lambda Notifier] Received %d records", len(batch.Records))
	return kinesis.Process(ctx, batch, emailHandler.HandleEvent), nil
}

func main() {
	lambda.Start(handler)
}
