package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/digital-storefront/internal/domain/order"
)

// fakeDynamo keeps items keyed by transaction_id and honours attribute_not_exists.
type fakeDynamo struct {
	mu     sync.Mutex
	items  map[string]map[string]types.AttributeValue
	putErr error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func txKey(item map[string]types.AttributeValue) string {
	if v, ok := item["transaction_id"].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	key := txKey(in.Item)
	if _, exists := f.items[key]; exists && aws.ToString(in.ConditionExpression) != "" {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("conditional request failed")}
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[txKey(in.Key)]}, nil
}

func (f *fakeDynamo) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var want string
	if v, ok := in.ExpressionAttributeValues[":cid"].(*types.AttributeValueMemberS); ok {
		want = v.Value
	}
	out := &dynamodb.ScanOutput{}
	for _, item := range f.items {
		if want != "" {
			if v, ok := item["customer_id"].(*types.AttributeValueMemberS); !ok || v.Value != want {
				continue
			}
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func TestDynamoOrderRepository_CreateWritesEventEnvelope(t *testing.T) {
	fake := newFakeDynamo()
	repo := NewDynamoOrderRepository(fake, "orders")
	o := newTestOrder("T-1", "cust-1", time.Now())

	_, created, err := repo.CreateOrder(context.Background(), o)
	require.NoError(t, err)
	assert.True(t, created)

	item := fake.items["T-1"]
	require.NotNil(t, item)
	assert.Equal(t, order.AggregateType, item["aggregate_type"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, order.EventOrderPlaced, item["event_type"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, o.ID, item["aggregate_id"].(*types.AttributeValueMemberS).Value)
	assert.Contains(t, item["data"].(*types.AttributeValueMemberS).Value, `"order_id":"`+o.ID+`"`)
}

func TestDynamoOrderRepository_DuplicateReturnsExisting(t *testing.T) {
	repo := NewDynamoOrderRepository(newFakeDynamo(), "orders")
	ctx := context.Background()
	first := newTestOrder("T-1", "cust-1", time.Now())

	_, created, err := repo.CreateOrder(ctx, first)
	require.NoError(t, err)
	require.True(t, created)

	stored, created, err := repo.CreateOrder(ctx, newTestOrder("T-1", "cust-1", time.Now()))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, stored.ID)
	assert.Equal(t, first.Total, stored.Total)
}

func TestDynamoOrderRepository_PutError(t *testing.T) {
	fake := newFakeDynamo()
	fake.putErr = errors.New("throttled")
	repo := NewDynamoOrderRepository(fake, "orders")

	_, created, err := repo.CreateOrder(context.Background(), newTestOrder("T-1", "cust-1", time.Now()))
	assert.Error(t, err)
	assert.False(t, created)
}

func TestDynamoOrderRepository_GetAndList(t *testing.T) {
	repo := NewDynamoOrderRepository(newFakeDynamo(), "orders")
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	_, _, err := repo.CreateOrder(ctx, newTestOrder("T-1", "cust-1", base))
	require.NoError(t, err)
	_, _, err = repo.CreateOrder(ctx, newTestOrder("T-2", "cust-2", base.Add(time.Hour)))
	require.NoError(t, err)

	fetched, err := repo.GetByTransactionID(ctx, "T-2")
	require.NoError(t, err)
	assert.Equal(t, "cust-2", fetched.CustomerID)
	assert.Len(t, fetched.Items, 1)

	_, err = repo.GetByTransactionID(ctx, "T-9")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "T-2", all[0].TransactionID)

	mine, err := repo.ListByCustomer(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "T-1", mine[0].TransactionID)
}
