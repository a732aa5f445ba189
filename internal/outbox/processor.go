package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/astghikaramyan/resource-service/internal/database"
	outboxEventRepository "github.com/astghikaramyan/resource-service/internal/database/repository/outboxevent"
	"github.com/astghikaramyan/resource-service/internal/events"
	"github.com/astghikaramyan/resource-service/internal/lifecycle"
	"github.com/astghikaramyan/resource-service/internal/task"
	"github.com/astghikaramyan/resource-service/internal/traceid"
	"github.com/oklog/ulid/v2"
)

const DefaultInterval = 30 * time.Second

// Processor drains unprocessed outbox rows on a fixed schedule and
// re-publishes resource-created for each one. Rows are only marked
// processed after a successful publish, so delivery is at-least-once and
// consumers must tolerate duplicates.
type Processor struct {
	db             database.Database
	outboxEvents   outboxEventRepository.Repository
	publisher      events.Publisher
	interval       time.Duration
	trigger        chan struct{}
	taskHandle     *task.TaskHandle
	stateValidator *lifecycle.StateValidator
}

func NewProcessor(db database.Database, outboxEvents outboxEventRepository.Repository, publisher events.Publisher, interval time.Duration) (*Processor, error) {
	stateValidator, err := lifecycle.New("OutboxProcessor")
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Processor{
		db:             db,
		outboxEvents:   outboxEvents,
		publisher:      publisher,
		interval:       interval,
		trigger:        make(chan struct{}, 1),
		stateValidator: stateValidator,
	}, nil
}

func (p *Processor) Start() error {
	err := p.stateValidator.Start()
	if err != nil {
		return err
	}
	p.taskHandle = task.StartPeriodic(p.interval, p.trigger, func() {
		p.ProcessPendingEvents(context.Background())
	})
	return nil
}

func (p *Processor) Stop() error {
	err := p.stateValidator.Stop()
	if err != nil {
		return err
	}
	p.taskHandle.Cancel()
	p.Notify()
	p.taskHandle.Join()
	return nil
}

// Notify wakes the drain loop ahead of the next scheduled tick. It never
// blocks; a wakeup already queued is enough.
func (p *Processor) Notify() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// ProcessPendingEvents publishes every unprocessed outbox row and marks
// the successfully published ones in a single batch update. Rows whose
// publish failed stay unprocessed and are retried on the next run.
func (p *Processor) ProcessPendingEvents(ctx context.Context) {
	pendingEvents, err := p.findUnprocessedEvents(ctx)
	if err != nil {
		slog.Error(fmt.Sprint("Failed to read unprocessed outbox events: ", err))
		return
	}
	if len(pendingEvents) == 0 {
		return
	}
	runTraceId := traceid.FromContextOrNew(ctx)
	publishedIds := make([]ulid.ULID, 0, len(pendingEvents))
	for _, pendingEvent := range pendingEvents {
		err = p.publisher.Publish(ctx, events.TopicResourceCreated, events.Event{
			ResourceId: pendingEvent.ResourceId,
			TraceId:    runTraceId,
		})
		if err != nil {
			slog.Error(fmt.Sprintf("Failed to publish outbox event %s for resource ID=%d: %v", pendingEvent.Id, pendingEvent.ResourceId, err))
			continue
		}
		publishedIds = append(publishedIds, *pendingEvent.Id)
	}
	if len(publishedIds) == 0 {
		return
	}
	err = p.markEventsProcessed(ctx, publishedIds)
	if err != nil {
		slog.Error(fmt.Sprint("Failed to mark outbox events as processed, they will be re-delivered: ", err))
		return
	}
	slog.Info(fmt.Sprintf("Processed %d outbox events", len(publishedIds)))
}

func (p *Processor) findUnprocessedEvents(ctx context.Context) ([]outboxEventRepository.Entity, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	pendingEvents, err := p.outboxEvents.FindUnprocessedOutboxEvents(ctx, tx)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	err = tx.Commit()
	if err != nil {
		return nil, err
	}
	return pendingEvents, nil
}

func (p *Processor) markEventsProcessed(ctx context.Context, ids []ulid.ULID) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: false})
	if err != nil {
		return err
	}
	err = p.outboxEvents.MarkOutboxEventsProcessed(ctx, tx, ids)
	if err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
