package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/example/digital-storefront/internal/domain/order"
)

func newTestOrder(transactionID, customerID string, createdAt time.Time) order.Order {
	return order.Order{
		ID:            uuid.New().String(),
		TransactionID: transactionID,
		CustomerID:    customerID,
		CustomerEmail: "budi@example.com",
		Method:        "BRI_VA",
		Items: []order.OrderItem{
			{ProductRef: "wifi-install", Title: "WiFi Installation", Tier: "Basic", Quantity: 2, UnitPrice: 100000},
		},
		Subtotal:  200000,
		Fee:       4250,
		Total:     204250,
		Status:    order.StatusPaid,
		CreatedAt: createdAt.UTC().Truncate(time.Microsecond),
		PaidAt:    createdAt.UTC().Truncate(time.Microsecond),
	}
}
