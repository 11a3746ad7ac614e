package cache

import (
	"context"

	"github.com/frahmantamala/finance-tracker/internal/core/events"
)

// RegisterEventHandlers subscribes the coordinator to ledger mutation and user
// deletion events.
// Handlers never fail; invalidation problems are logged by the coordinator.
func RegisterEventHandlers(bus *events.EventBus, c *Coordinator) {
	bus.SubscribeAll(func(ctx context.Context, e events.Event) error {
		if ev, ok := e.(*events.TransactionMutatedEvent); ok {
			c.OnTransactionMutated(ctx, ev.OwnerID)
		}
		return nil
	}, events.TransactionEventTypes...)

	bus.SubscribeAll(func(ctx context.Context, e events.Event) error {
		ev, ok := e.(*events.CategoryMutatedEvent)
		if !ok {
			return nil
		}
		if ev.PresentationChanged {
			c.OnCategoryPresentationChanged(ctx)
		} else {
			c.OnCategoryMutated(ctx)
		}
		return nil
	}, events.CategoryEventTypes...)

	bus.Subscribe(events.EventTypeUserDeleted, func(ctx context.Context, e events.Event) error {
		if ev, ok := e.(*events.UserDeletedEvent); ok {
			c.OnTransactionMutated(ctx, ev.UserID)
		}
		return nil
	})
}
