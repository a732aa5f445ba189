package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/astghikaramyan/resource-service/internal/database"
	"github.com/astghikaramyan/resource-service/internal/database/repository/outboxevent"
	testutils "github.com/astghikaramyan/resource-service/internal/testing"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
)

func openTestDatabase(t *testing.T) database.Database {
	t.Helper()
	db, err := database.OpenSqliteDatabase(filepath.Join(t.TempDir(), "test.db"))
	assert.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func inTx(t *testing.T, db database.Database, readOnly bool, fn func(tx *sql.Tx)) {
	t.Helper()
	tx, err := db.BeginTx(context.Background(), &sql.TxOptions{ReadOnly: readOnly})
	assert.NoError(t, err)
	fn(tx)
	assert.NoError(t, tx.Commit())
}

func saveEvent(t *testing.T, db database.Database, repo outboxevent.Repository, resourceId int64) outboxevent.Entity {
	t.Helper()
	event := outboxevent.Entity{ResourceId: resourceId}
	inTx(t, db, false, func(tx *sql.Tx) {
		assert.NoError(t, repo.SaveOutboxEvent(context.Background(), tx, &event))
	})
	assert.NotNil(t, event.Id)
	return event
}

func TestSaveOutboxEventAssignsIdAndTimestamps(t *testing.T) {
	testutils.SkipIfIntegration(t)

	db := openTestDatabase(t)
	repo, err := NewRepository()
	assert.NoError(t, err)

	event := saveEvent(t, db, repo, 1)
	assert.False(t, event.Processed)
	assert.False(t, event.CreatedAt.IsZero())
	assert.Equal(t, event.CreatedAt, event.UpdatedAt)
}

func TestFindUnprocessedOutboxEvents(t *testing.T) {
	testutils.SkipIfIntegration(t)

	db := openTestDatabase(t)
	repo, err := NewRepository()
	assert.NoError(t, err)

	first := saveEvent(t, db, repo, 1)
	second := saveEvent(t, db, repo, 2)

	inTx(t, db, true, func(tx *sql.Tx) {
		events, err := repo.FindUnprocessedOutboxEvents(context.Background(), tx)
		assert.NoError(t, err)
		assert.Len(t, events, 2)
		ids := []ulid.ULID{*events[0].Id, *events[1].Id}
		assert.Contains(t, ids, *first.Id)
		assert.Contains(t, ids, *second.Id)
	})
}

func TestMarkOutboxEventsProcessedBatch(t *testing.T) {
	testutils.SkipIfIntegration(t)

	db := openTestDatabase(t)
	repo, err := NewRepository()
	assert.NoError(t, err)

	first := saveEvent(t, db, repo, 1)
	second := saveEvent(t, db, repo, 2)
	third := saveEvent(t, db, repo, 3)

	inTx(t, db, false, func(tx *sql.Tx) {
		assert.NoError(t, repo.MarkOutboxEventsProcessed(context.Background(), tx, []ulid.ULID{*first.Id, *third.Id}))
	})

	inTx(t, db, true, func(tx *sql.Tx) {
		events, err := repo.FindUnprocessedOutboxEvents(context.Background(), tx)
		assert.NoError(t, err)
		assert.Len(t, events, 1)
		assert.Equal(t, *second.Id, *events[0].Id)
	})
}

func TestMarkOutboxEventsProcessedEmptyIsNoOp(t *testing.T) {
	testutils.SkipIfIntegration(t)

	db := openTestDatabase(t)
	repo, err := NewRepository()
	assert.NoError(t, err)

	inTx(t, db, false, func(tx *sql.Tx) {
		assert.NoError(t, repo.MarkOutboxEventsProcessed(context.Background(), tx, nil))
	})
}
