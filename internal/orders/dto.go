package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jmcarrillo/fogata-backend/pkg/enums"
)

// OrderLineInput is one requested (product, quantity) pair.
type OrderLineInput struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// CreateOrderInput carries the demand of a new order. PlacedAt defaults to
// the current time when zero.
type CreateOrderInput struct {
	Lines    []OrderLineInput `json:"lines"`
	PlacedAt time.Time        `json:"placed_at"`
}

// OrderCreatedEvent is emitted when an order is accepted.
type OrderCreatedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	Type    enums.OrderType   `json:"type"`
	Status  enums.OrderStatus `json:"status"`
	Lines   []OrderLineInput  `json:"lines"`
}

// OrderStateChangedEvent is emitted on every lifecycle transition.
type OrderStateChangedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}

// OrderSettlementFailedEvent records a settlement attempt that found less
// stock than the admission check promised. The order stays pending.
type OrderSettlementFailedEvent struct {
	OrderID uuid.UUID `json:"order_id"`
	Reason  string    `json:"reason"`
}
