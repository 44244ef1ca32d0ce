package order

import "time"

const AggregateType = "Order"

const (
	EventOrderPlaced = "OrderPlaced"
)

type OrderItem struct {
	ProductRef string `json:"product_ref"`
	Title      string `json:"title"`
	Tier       string `json:"tier"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
}

// OrderPlaced is published once per committed order.
type OrderPlaced struct {
	OrderID       string      `json:"order_id"`
	TransactionID string      `json:"transaction_id"`
	CustomerID    string      `json:"customer_id"`
	CustomerEmail string      `json:"customer_email,omitempty"`
	Method        string      `json:"method"`
	Items         []OrderItem `json:"items"`
	Subtotal      int64       `json:"subtotal"`
	Fee           int64       `json:"fee"`
	Total         int64       `json:"total"`
	PlacedAt      time.Time   `json:"placed_at"`
}
