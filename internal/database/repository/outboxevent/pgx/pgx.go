package pgx

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/astghikaramyan/resource-service/internal/database/repository/outboxevent"
	"github.com/oklog/ulid/v2"
)

type pgxRepository struct {
}

const (
	findUnprocessedOutboxEventsStmt = "SELECT id, resource_id, processed, created_at, updated_at FROM outbox_events WHERE processed = FALSE ORDER BY id ASC"
	insertOutboxEventStmt           = "INSERT INTO outbox_events (id, resource_id, processed, created_at, updated_at) VALUES($1, $2, $3, $4, $5)"
	updateOutboxEventByIdStmt       = "UPDATE outbox_events SET resource_id = $1, processed = $2, updated_at = $3 WHERE id = $4"
	markOutboxEventsProcessedStmt   = "UPDATE outbox_events SET processed = TRUE, updated_at = $1 WHERE id = ANY(ARRAY[%s])"
)

func NewRepository() (outboxevent.Repository, error) {
	return &pgxRepository{}, nil
}

func (por *pgxRepository) SaveOutboxEvent(ctx context.Context, tx *sql.Tx, event *outboxevent.Entity) error {
	if event.Id == nil {
		id := ulid.Make()
		event.Id = &id
		event.CreatedAt = time.Now()
		event.UpdatedAt = event.CreatedAt
		_, err := tx.ExecContext(ctx, insertOutboxEventStmt, event.Id.String(), event.ResourceId, event.Processed, event.CreatedAt, event.UpdatedAt)
		return err
	}

	event.UpdatedAt = time.Now()
	_, err := tx.ExecContext(ctx, updateOutboxEventByIdStmt, event.ResourceId, event.Processed, event.UpdatedAt, event.Id.String())
	return err
}

func (por *pgxRepository) FindUnprocessedOutboxEvents(ctx context.Context, tx *sql.Tx) ([]outboxevent.Entity, error) {
	rows, err := tx.QueryContext(ctx, findUnprocessedOutboxEventsStmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := []outboxevent.Entity{}
	for rows.Next() {
		var id string
		var resourceId int64
		var processed bool
		var createdAt time.Time
		var updatedAt time.Time
		err = rows.Scan(&id, &resourceId, &processed, &createdAt, &updatedAt)
		if err != nil {
			return nil, err
		}
		ulidId := ulid.MustParse(id)
		events = append(events, outboxevent.Entity{
			Id:         &ulidId,
			ResourceId: resourceId,
			Processed:  processed,
			CreatedAt:  createdAt,
			UpdatedAt:  updatedAt,
		})
	}
	return events, rows.Err()
}

func (por *pgxRepository) MarkOutboxEventsProcessed(ctx context.Context, tx *sql.Tx, ids []ulid.ULID) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, 0, len(ids))
	args := []any{time.Now()}
	for i, id := range ids {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
		args = append(args, id.String())
	}
	stmt := fmt.Sprintf(markOutboxEventsProcessedStmt, strings.Join(placeholders, ", "))
	_, err := tx.ExecContext(ctx, stmt, args...)
	return err
}
