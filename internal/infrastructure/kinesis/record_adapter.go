// Package kinesis decodes event store inserts that DynamoDB streams into
// Kinesis Data Streams.
package kinesis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/example/ec-order-lifecycle/internal/infrastructure/store"
)

// Handler receives one decoded event in the same shape as a Kafka message
type Handler func(ctx context.Context, key, value []byte) error

// DecodeRecord returns the stored event carried by a Kinesis record, or nil
// for stream records other than inserts.
func DecodeRecord(record events.KinesisEventRecord) (*store.Event, error) {
	var change events.DynamoDBEventRecord
	if err := json.Unmarshal(record.Kinesis.Data, &change); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DynamoDB record: %w", err)
	}
	return DecodeStreamRecord(change)
}

// DecodeStreamRecord is DecodeRecord for records read from DynamoDB Streams directly
func DecodeStreamRecord(change events.DynamoDBEventRecord) (*store.Event, error) {
	// Events are append-only; only inserts carry new events
	if change.EventName != "INSERT" {
		return nil, nil
	}
	return eventFromImage(change.Change.NewImage)
}

func eventFromImage(image map[string]events.DynamoDBAttributeValue) (*store.Event, error) {
	if image == nil {
		return nil, fmt.Errorf("DynamoDB image is nil")
	}

	str := func(name string) string {
		if v, ok := image[name]; ok && v.DataType() == events.DataTypeString {
			return v.String()
		}
		return ""
	}

	event := &store.Event{
		ID:            str("id"),
		AggregateID:   str("aggregate_id"),
		AggregateType: str("aggregate_type"),
		EventType:     str("event_type"),
		Data:          json.RawMessage(str("data")),
	}
	if event.ID == "" || event.AggregateID == "" || event.EventType == "" {
		return nil, fmt.Errorf("missing required fields: id=%q, aggregate_id=%q, event_type=%q",
			event.ID, event.AggregateID, event.EventType)
	}

	if createdAt := str("created_at"); createdAt != "" {
		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		event.Timestamp = t
	}
	if v, ok := image["version"]; ok {
		version, err := v.Integer()
		if err != nil {
			return nil, fmt.Errorf("failed to parse version: %w", err)
		}
		event.Version = int(version)
	}

	return event, nil
}

// Process hands every inserted event of a batch to handle. Records that
// cannot be decoded or handled are reported back as batch item failures so
// Lambda retries only those.
func Process(ctx context.Context, batch events.KinesisEvent, handle Handler) events.KinesisEventResponse {
	var failures []events.KinesisBatchItemFailure
	fail := func(record events.KinesisEventRecord, err error) {
		log.Printf("[Stream] Record %s failed: %v", record.EventID, err)
		failures = append(failures, events.KinesisBatchItemFailure{ItemIdentifier: record.Kinesis.SequenceNumber})
	}

	for _, record := range batch.Records {
		event, err := DecodeRecord(record)
		if err != nil {
			fail(record, err)
			continue
		}
		if event == nil {
			continue
		}

		value, err := json.Marshal(event)
		if err != nil {
			fail(record, err)
			continue
		}
		if err := handle(ctx, []byte(event.AggregateID), value); err != nil {
			fail(record, err)
		}
	}

	log.Printf("[Stream] Processed %d/%d records", len(batch.Records)-len(failures), len(batch.Records))
	return events.KinesisEventResponse{BatchItemFailures: failures}
}
