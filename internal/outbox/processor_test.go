package outbox

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/astghikaramyan/resource-service/internal/database"
	"github.com/astghikaramyan/resource-service/internal/database/repository/outboxevent"
	outboxEventSqliteRepository "github.com/astghikaramyan/resource-service/internal/database/repository/outboxevent/sqlite"
	"github.com/astghikaramyan/resource-service/internal/events"
	testutils "github.com/astghikaramyan/resource-service/internal/testing"
	"github.com/stretchr/testify/assert"
)

type fakePublisher struct {
	published []events.Event
	failFor   map[int64]error
}

func (f *fakePublisher) Publish(ctx context.Context, topic string, event events.Event) error {
	if err := f.failFor[event.ResourceId]; err != nil {
		return err
	}
	f.published = append(f.published, event)
	return nil
}

type processorHarness struct {
	processor *Processor
	db        database.Database
	repo      outboxevent.Repository
	publisher *fakePublisher
}

func newProcessorHarness(t *testing.T, interval time.Duration) *processorHarness {
	t.Helper()
	db, err := database.OpenSqliteDatabase(filepath.Join(t.TempDir(), "test.db"))
	assert.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})
	repo, err := outboxEventSqliteRepository.NewRepository()
	assert.NoError(t, err)
	publisher := &fakePublisher{failFor: map[int64]error{}}
	processor, err := NewProcessor(db, repo, publisher, interval)
	assert.NoError(t, err)
	return &processorHarness{
		processor: processor,
		db:        db,
		repo:      repo,
		publisher: publisher,
	}
}

func (h *processorHarness) insertEvent(t *testing.T, resourceId int64) {
	t.Helper()
	tx, err := h.db.BeginTx(context.Background(), &sql.TxOptions{ReadOnly: false})
	assert.NoError(t, err)
	event := outboxevent.Entity{ResourceId: resourceId}
	assert.NoError(t, h.repo.SaveOutboxEvent(context.Background(), tx, &event))
	assert.NoError(t, tx.Commit())
}

func (h *processorHarness) unprocessedCount(t *testing.T) int {
	t.Helper()
	tx, err := h.db.BeginTx(context.Background(), &sql.TxOptions{ReadOnly: true})
	assert.NoError(t, err)
	pending, err := h.repo.FindUnprocessedOutboxEvents(context.Background(), tx)
	assert.NoError(t, err)
	assert.NoError(t, tx.Commit())
	return len(pending)
}

func TestProcessPendingEventsPublishesAndMarks(t *testing.T) {
	testutils.SkipIfIntegration(t)

	h := newProcessorHarness(t, DefaultInterval)
	h.insertEvent(t, 1)
	h.insertEvent(t, 2)

	h.processor.ProcessPendingEvents(context.Background())

	assert.Len(t, h.publisher.published, 2)
	assert.Equal(t, 0, h.unprocessedCount(t))
	for _, event := range h.publisher.published {
		assert.NotEmpty(t, event.TraceId)
	}
}

func TestProcessPendingEventsIsNoOpWithoutRows(t *testing.T) {
	testutils.SkipIfIntegration(t)

	h := newProcessorHarness(t, DefaultInterval)
	h.processor.ProcessPendingEvents(context.Background())
	assert.Empty(t, h.publisher.published)
}

func TestProcessPendingEventsKeepsFailedPublishes(t *testing.T) {
	testutils.SkipIfIntegration(t)

	h := newProcessorHarness(t, DefaultInterval)
	h.insertEvent(t, 1)
	h.insertEvent(t, 2)
	h.publisher.failFor[1] = errors.New("broker down")

	h.processor.ProcessPendingEvents(context.Background())

	assert.Len(t, h.publisher.published, 1)
	assert.Equal(t, int64(2), h.publisher.published[0].ResourceId)
	assert.Equal(t, 1, h.unprocessedCount(t))

	// The failed row is retried on the next run.
	delete(h.publisher.failFor, 1)
	h.processor.ProcessPendingEvents(context.Background())
	assert.Equal(t, 0, h.unprocessedCount(t))
}

func TestProcessorDrainsOnNotify(t *testing.T) {
	testutils.SkipIfIntegration(t)

	h := newProcessorHarness(t, time.Hour)
	h.insertEvent(t, 1)

	assert.NoError(t, h.processor.Start())
	t.Cleanup(func() {
		h.processor.Stop()
	})

	h.processor.Notify()
	assert.Eventually(t, func() bool {
		return h.unprocessedCount(t) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestProcessorLifecycleGuards(t *testing.T) {
	testutils.SkipIfIntegration(t)

	h := newProcessorHarness(t, time.Hour)
	assert.NoError(t, h.processor.Start())
	assert.Error(t, h.processor.Start())
	assert.NoError(t, h.processor.Stop())
	assert.Error(t, h.processor.Stop())
}
