package cron

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/jmcarrillo/fogata-backend/internal/catalog"
	"github.com/jmcarrillo/fogata-backend/pkg/enums"
	"github.com/jmcarrillo/fogata-backend/pkg/logger"
	"github.com/jmcarrillo/fogata-backend/pkg/outbox"
	"github.com/jmcarrillo/fogata-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type belowRestockLister interface {
	ListBelowRestock(ctx context.Context) ([]catalog.BelowRestockRow, error)
}

type restockEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// RestockWatchJobParams configure the restock watcher.
type RestockWatchJobParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Catalog belowRestockLister
	Outbox  restockEmitter
}

// NewRestockWatchJob builds the job that flags items whose open stock has
// fallen to or below their restock level. Emission is deduplicated so an item
// lingering under its buffer does not flood the topic every cycle.
func NewRestockWatchJob(params RestockWatchJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &restockWatchJob{
		logg:    params.Logger,
		db:      params.DB,
		catalog: params.Catalog,
		outbox:  params.Outbox,
	}, nil
}

type restockWatchJob struct {
	logg    *logger.Logger
	db      txRunner
	catalog belowRestockLister
	outbox  restockEmitter
}

func (j *restockWatchJob) Name() string { return "restock-watch" }

func (j *restockWatchJob) Run(ctx context.Context) error {
	rows, err := j.catalog.ListBelowRestock(ctx)
	if err != nil {
		return fmt.Errorf("list below restock: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	err = j.db.WithTx(ctx, func(tx *gorm.DB) error {
		for _, row := range rows {
			event := outbox.DomainEvent{
				EventType:     enums.EventItemBelowRestock,
				AggregateType: enums.AggregateStockBatch,
				AggregateID:   row.ItemID,
				Data: payloads.ItemBelowRestockEvent{
					ItemID:       row.ItemID,
					Name:         row.Name,
					Available:    row.Available,
					RestockLevel: row.RestockLevel,
				},
			}
			if err := j.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("emit below-restock events: %w", err)
	}

	logCtx := j.logg.WithField(ctx, "items_below_restock", len(rows))
	j.logg.Info(logCtx, "restock watch complete")
	return nil
}
