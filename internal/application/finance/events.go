package finance

import (
	"context"

	"github.com/shopledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// pendingEvents collects domain events of aggregates saved inside a unit of work.
// They are published only after the transaction commits.
type pendingEvents struct {
	events []shared.DomainEvent
}

func (p *pendingEvents) collect(aggregates ...shared.AggregateRoot) {
	for _, agg := range aggregates {
		if agg == nil {
			continue
		}
		p.events = append(p.events, agg.GetDomainEvents()...)
		agg.ClearDomainEvents()
	}
}

func (p *pendingEvents) reset() {
	p.events = nil
}

func publishEvents(ctx context.Context, publisher shared.EventPublisher, logger *zap.Logger, pending *pendingEvents) {
	if publisher == nil || len(pending.events) == 0 {
		return
	}
	if err := publisher.Publish(ctx, pending.events...); err != nil {
		logger.Error("failed to publish domain events",
			zap.Int("event_count", len(pending.events)),
			zap.Error(err),
		)
	}
	pending.reset()
}
