package kinesis

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderImage(id string) map[string]events.DynamoDBAttributeValue {
	return map[string]events.DynamoDBAttributeValue{
		"transaction_id": events.NewStringAttribute("T-1"),
		"id":             events.NewStringAttribute(id),
		"aggregate_id":   events.NewStringAttribute("ord-1"),
		"aggregate_type": events.NewStringAttribute("Order"),
		"event_type":     events.NewStringAttribute("OrderPlaced"),
		"data":           events.NewStringAttribute(`{"order_id":"ord-1","total":204250}`),
		"created_at":     events.NewStringAttribute("2026-01-15T10:30:00.123456789Z"),
		"version":        events.NewNumberAttribute("1"),
	}
}

func kinesisRecord(t *testing.T, seq, name string, image map[string]events.DynamoDBAttributeValue) events.KinesisEventRecord {
	t.Helper()
	data, err := json.Marshal(events.DynamoDBEventRecord{
		EventName: name,
		Change:    events.DynamoDBStreamRecord{NewImage: image},
	})
	require.NoError(t, err)
	return events.KinesisEventRecord{
		EventID: "shard-1:" + seq,
		Kinesis: events.KinesisRecord{Data: data, SequenceNumber: seq},
	}
}

func TestDecodeImage(t *testing.T) {
	tests := []struct {
		name    string
		image   map[string]events.DynamoDBAttributeValue
		wantErr bool
	}{
		{name: "order placed", image: orderImage("evt-1")},
		{name: "nil image", image: nil, wantErr: true},
		{
			name:    "missing required fields",
			image:   map[string]events.DynamoDBAttributeValue{"id": events.NewStringAttribute("evt-1")},
			wantErr: true,
		},
		{
			name: "bad created_at",
			image: func() map[string]events.DynamoDBAttributeValue {
				img := orderImage("evt-1")
				img["created_at"] = events.NewStringAttribute("yesterday")
				return img
			}(),
			wantErr: true,
		},
		{
			name: "data is not json",
			image: func() map[string]events.DynamoDBAttributeValue {
				img := orderImage("evt-1")
				img["data"] = events.NewStringAttribute("{broken")
				return img
			}(),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt, err := decodeImage(tt.image)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, evt)
			assert.Equal(t, "evt-1", evt.ID)
			assert.Equal(t, "ord-1", evt.AggregateID)
			assert.Equal(t, "Order", evt.AggregateType)
			assert.Equal(t, "OrderPlaced", evt.EventType)
			assert.Equal(t, 1, evt.Version)
			assert.Equal(t, time.Date(2026, 1, 15, 10, 30, 0, 123456789, time.UTC), evt.Timestamp)

			var payload struct {
				Total int64 `json:"total"`
			}
			require.NoError(t, evt.Decode(&payload))
			assert.Equal(t, int64(204250), payload.Total)
		})
	}
}

func TestDecodeStreamRecord_IgnoresNonInserts(t *testing.T) {
	for _, name := range []string{"MODIFY", "REMOVE"} {
		t.Run(name, func(t *testing.T) {
			evt, err := DecodeStreamRecord(events.DynamoDBEventRecord{EventName: name})
			require.NoError(t, err)
			assert.Nil(t, evt)
		})
	}
}

func TestDecodeRecord(t *testing.T) {
	evt, err := DecodeRecord(kinesisRecord(t, "100", "INSERT", orderImage("evt-1")))
	require.NoError(t, err)
	require.NotNil(t, evt)
	assert.Equal(t, "evt-1", evt.ID)
}

func TestDecodeBatch_MixedResults(t *testing.T) {
	in := events.KinesisEvent{
		Records: []events.KinesisEventRecord{
			kinesisRecord(t, "100", "INSERT", orderImage("evt-1")),
			kinesisRecord(t, "101", "MODIFY", nil),
			{EventID: "shard-1:102", Kinesis: events.KinesisRecord{Data: []byte("invalid json"), SequenceNumber: "102"}},
			kinesisRecord(t, "103", "INSERT", orderImage("evt-2")),
		},
	}

	decoded, failures := DecodeBatch(in)

	require.Len(t, decoded, 2)
	assert.Equal(t, "100", decoded[0].SequenceNumber)
	assert.Equal(t, "evt-1", decoded[0].Event.ID)
	assert.Equal(t, "103", decoded[1].SequenceNumber)

	require.Len(t, failures, 1)
	assert.Equal(t, "102", failures[0].SequenceNumber)
	assert.Error(t, failures[0].Err)
}
