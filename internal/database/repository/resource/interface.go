package resource

import (
	"context"
	"database/sql"
	"time"

	"github.com/astghikaramyan/resource-service/internal/directory"
)

// Entity is the relational identity of an uploaded file. A row exists iff
// the blob exists in exactly one storage tier; the orchestrator's
// compensation logic maintains that invariant.
type Entity struct {
	Id          *int64
	BlobKey     string
	LocationUrl string
	Tier        directory.Tier
	UploadedAt  time.Time
}

type Repository interface {
	SaveResource(ctx context.Context, tx *sql.Tx, resource *Entity) error
	FindResourceById(ctx context.Context, tx *sql.Tx, id int64) (*Entity, error)
	DeleteResourceById(ctx context.Context, tx *sql.Tx, id int64) error
}
