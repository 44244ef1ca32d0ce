package kinesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/example/digital-storefront/internal/domain/event"
)

var ErrMissingImage = errors.New("stream record has no new image")

// Record is a decoded stream record together with the sequence number needed
// to report it back as a batch item failure.
type Record struct {
	SequenceNumber string
	Event          *event.Event
}

// Failure is a record that could not be decoded.
type Failure struct {
	SequenceNumber string
	Err            error
}

// DecodeRecord reads an order table change delivered through Kinesis in DynamoDB
// Streams format. Only INSERTs carry new events; other changes yield nil.
func DecodeRecord(record events.KinesisEventRecord) (*event.Event, error) {
	var change events.DynamoDBEventRecord
	if err := json.Unmarshal(record.Kinesis.Data, &change); err != nil {
		return nil, fmt.Errorf("unmarshal DynamoDB record: %w", err)
	}
	return DecodeStreamRecord(change)
}

// DecodeStreamRecord converts a DynamoDB Streams record.
func DecodeStreamRecord(change events.DynamoDBEventRecord) (*event.Event, error) {
	if change.EventName != string(events.DynamoDBOperationTypeInsert) {
		return nil, nil
	}
	return decodeImage(change.Change.NewImage)
}

func decodeImage(image map[string]events.DynamoDBAttributeValue) (*event.Event, error) {
	if image == nil {
		return nil, ErrMissingImage
	}

	str := func(name string) string {
		if v, ok := image[name]; ok && v.DataType() == events.DataTypeString {
			return v.String()
		}
		return ""
	}

	evt := &event.Event{
		ID:            str("id"),
		AggregateID:   str("aggregate_id"),
		AggregateType: str("aggregate_type"),
		EventType:     str("event_type"),
		Data:          json.RawMessage(str("data")),
	}

	if raw := str("created_at"); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		evt.Timestamp = ts
	}
	if v, ok := image["version"]; ok && v.DataType() == events.DataTypeNumber {
		version, err := v.Integer()
		if err != nil {
			return nil, fmt.Errorf("parse version: %w", err)
		}
		evt.Version = int(version)
	}

	if evt.ID == "" || evt.AggregateID == "" || evt.EventType == "" {
		return nil, fmt.Errorf("missing required fields: id=%q aggregate_id=%q event_type=%q",
			evt.ID, evt.AggregateID, evt.EventType)
	}
	if len(evt.Data) > 0 && !json.Valid(evt.Data) {
		return nil, fmt.Errorf("event %s: data is not valid JSON", evt.ID)
	}
	return evt, nil
}

// DecodeBatch decodes every record in a Kinesis event. Skipped (non-INSERT)
// records appear in neither result.
func DecodeBatch(in events.KinesisEvent) ([]Record, []Failure) {
	var decoded []Record
	var failures []Failure

	for _, record := range in.Records {
		evt, err := DecodeRecord(record)
		if err != nil {
			failures = append(failures, Failure{
				SequenceNumber: record.Kinesis.SequenceNumber,
				Err:            fmt.Errorf("record %s: %w", record.EventID, err),
			})
			continue
		}
		if evt != nil {
			decoded = append(decoded, Record{SequenceNumber: record.Kinesis.SequenceNumber, Event: evt})
		}
	}
	return decoded, failures
}
