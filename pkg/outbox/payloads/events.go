package payloads

import (
	"github.com/google/uuid"

	"github.com/jmcarrillo/fogata-backend/pkg/enums"
)

// OrderCreatedEvent signals a new order, direct sale or production.
type OrderCreatedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	Type    enums.OrderType   `json:"type"`
	Status  enums.OrderStatus `json:"status"`
	Lines   []OrderLine       `json:"lines"`
}

// OrderLine is one (product, quantity) pair of an order payload.
type OrderLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  string    `json:"quantity"`
}

// OrderStateChangedEvent reports a lifecycle transition.
type OrderStateChangedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}

// OrderSettlementFailedEvent records a settlement attempt that found less
// stock than admission promised; the order stays pending.
type OrderSettlementFailedEvent struct {
	OrderID uuid.UUID `json:"order_id"`
	Reason  string    `json:"reason"`
}

// ReleaseSettledEvent reports a reservation fully sourced from the ledger.
type ReleaseSettledEvent struct {
	ItemID   uuid.UUID    `json:"item_id"`
	Quantity string       `json:"quantity"`
	Debits   []BatchDebit `json:"debits,omitempty"`
}

// BatchDebit is one (batch, quantity) pair taken by an allocation.
type BatchDebit struct {
	BatchID  uuid.UUID `json:"batch_id"`
	Quantity string    `json:"quantity"`
}

// ReleaseReversedEvent reports a compensation crediting the originating batches.
type ReleaseReversedEvent struct {
	ItemID   uuid.UUID `json:"item_id"`
	Quantity string    `json:"quantity"`
}

// ProductionEvent covers both completed and undone production runs.
type ProductionEvent struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  string    `json:"quantity"`
}

// BatchReceivedEvent reports a purchase slice entering the ledger.
type BatchReceivedEvent struct {
	ItemID     uuid.UUID `json:"item_id"`
	PurchaseID uuid.UUID `json:"purchase_id"`
	Sequence   int64     `json:"sequence"`
	Quantity   string    `json:"quantity"`
}

// ItemBelowRestockEvent warns that an item's open stock fell to or below its
// restock level.
type ItemBelowRestockEvent struct {
	ItemID       uuid.UUID `json:"item_id"`
	Name         string    `json:"name"`
	Available    string    `json:"available"`
	RestockLevel string    `json:"restock_level"`
}
