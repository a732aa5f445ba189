package outboxevent

import (
	"context"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"
)

// Entity is one durable record of a resource-created event awaiting
// delivery. Rows are never physically deleted; delivery flips Processed.
type Entity struct {
	Id         *ulid.ULID
	ResourceId int64
	Processed  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Repository interface {
	SaveOutboxEvent(ctx context.Context, tx *sql.Tx, event *Entity) error
	FindUnprocessedOutboxEvents(ctx context.Context, tx *sql.Tx) ([]Entity, error)
	MarkOutboxEventsProcessed(ctx context.Context, tx *sql.Tx, ids []ulid.ULID) error
}
