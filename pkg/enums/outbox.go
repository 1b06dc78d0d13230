package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder         OutboxAggregateType = "order"
	AggregateRelease       OutboxAggregateType = "release"
	AggregateProductionRun OutboxAggregateType = "production_run"
	AggregateStockBatch    OutboxAggregateType = "stock_batch"
	AggregatePurchase      OutboxAggregateType = "purchase"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateRelease,
	AggregateProductionRun,
	AggregateStockBatch,
	AggregatePurchase,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated          OutboxEventType = "order_created"
	EventOrderStateChanged     OutboxEventType = "order_state_changed"
	EventOrderSettled          OutboxEventType = "order_settled"
	EventOrderSettlementFailed OutboxEventType = "order_settlement_failed"
	EventOrderCancelled        OutboxEventType = "order_cancelled"
	EventReleaseSettled        OutboxEventType = "release_settled"
	EventReleaseReversed       OutboxEventType = "release_reversed"
	EventProductionCompleted   OutboxEventType = "production_completed"
	EventProductionUndone      OutboxEventType = "production_undone"
	EventBatchReceived         OutboxEventType = "batch_received"
	EventItemBelowRestock      OutboxEventType = "item_below_restock"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStateChanged,
	EventOrderSettled,
	EventOrderSettlementFailed,
	EventOrderCancelled,
	EventReleaseSettled,
	EventReleaseReversed,
	EventProductionCompleted,
	EventProductionUndone,
	EventBatchReceived,
	EventItemBelowRestock,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
