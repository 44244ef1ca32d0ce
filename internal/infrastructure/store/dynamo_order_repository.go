package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/example/digital-storefront/internal/domain/order"
)

// dynamoAPI is the subset of the DynamoDB client the repository uses.
type dynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoOrderRepository stores one item per order, keyed by transaction id.
// Items carry the OrderPlaced event envelope so the table's Kinesis stream
// can feed the notifier Lambda directly.
type DynamoOrderRepository struct {
	client    dynamoAPI
	tableName string
}

var _ order.Repository = (*DynamoOrderRepository)(nil)

// dynamoOrder represents the DynamoDB item structure
type dynamoOrder struct {
	TransactionID string `dynamodbav:"transaction_id"`
	ID            string `dynamodbav:"id"`
	AggregateID   string `dynamodbav:"aggregate_id"`
	AggregateType string `dynamodbav:"aggregate_type"`
	EventType     string `dynamodbav:"event_type"`
	Data          string `dynamodbav:"data"`
	Order         string `dynamodbav:"order"`
	CustomerID    string `dynamodbav:"customer_id"`
	CreatedAt     string `dynamodbav:"created_at"`
	Version       int    `dynamodbav:"version"`
}

func NewDynamoOrderRepository(client dynamoAPI, tableName string) *DynamoOrderRepository {
	return &DynamoOrderRepository{client: client, tableName: tableName}
}

func (r *DynamoOrderRepository) CreateOrder(ctx context.Context, o order.Order) (order.Order, bool, error) {
	placed, err := json.Marshal(o.Placed())
	if err != nil {
		return order.Order{}, false, fmt.Errorf("marshal order event: %w", err)
	}
	full, err := json.Marshal(o)
	if err != nil {
		return order.Order{}, false, fmt.Errorf("marshal order: %w", err)
	}

	item := dynamoOrder{
		TransactionID: o.TransactionID,
		ID:            uuid.New().String(),
		AggregateID:   o.ID,
		AggregateType: order.AggregateType,
		EventType:     order.EventOrderPlaced,
		Data:          string(placed),
		Order:         string(full),
		CustomerID:    o.CustomerID,
		CreatedAt:     o.CreatedAt.Format(time.RFC3339Nano),
		Version:       1,
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return order.Order{}, false, fmt.Errorf("failed to marshal order: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(transaction_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if !errors.As(err, &ccf) {
			return order.Order{}, false, fmt.Errorf("failed to put order: %w", err)
		}
		existing, gerr := r.GetByTransactionID(ctx, o.TransactionID)
		if gerr != nil {
			return order.Order{}, false, gerr
		}
		return *existing, false, nil
	}

	return o, true, nil
}

func (r *DynamoOrderRepository) GetByTransactionID(ctx context.Context, transactionID string) (*order.Order, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"transaction_id": &types.AttributeValueMemberS{Value: transactionID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("%w: %s", order.ErrOrderNotFound, transactionID)
	}
	return unmarshalDynamoOrder(out.Item)
}

func (r *DynamoOrderRepository) List(ctx context.Context) ([]order.Order, error) {
	return r.scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
	})
}

func (r *DynamoOrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]order.Order, error) {
	return r.scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(r.tableName),
		FilterExpression: aws.String("customer_id = :cid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberS{Value: customerID},
		},
	})
}

func (r *DynamoOrderRepository) scan(ctx context.Context, input *dynamodb.ScanInput) ([]order.Order, error) {
	orders := make([]order.Order, 0)
	for {
		out, err := r.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to scan orders: %w", err)
		}
		for _, item := range out.Items {
			o, err := unmarshalDynamoOrder(item)
			if err != nil {
				return nil, err
			}
			orders = append(orders, *o)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func unmarshalDynamoOrder(item map[string]types.AttributeValue) (*order.Order, error) {
	var row dynamoOrder
	if err := attributevalue.UnmarshalMap(item, &row); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	var o order.Order
	if err := json.Unmarshal([]byte(row.Order), &o); err != nil {
		return nil, fmt.Errorf("failed to decode order %s: %w", row.TransactionID, err)
	}
	return &o, nil
}
