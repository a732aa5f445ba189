package pgx

import (
	"context"
	"database/sql"
	"time"

	"github.com/astghikaramyan/resource-service/internal/database/repository/resource"
	"github.com/astghikaramyan/resource-service/internal/directory"
)

type pgxRepository struct {
}

const (
	findResourceByIdStmt   = "SELECT id, blob_key, location_url, tier, uploaded_at FROM resources WHERE id = $1"
	insertResourceStmt     = "INSERT INTO resources (blob_key, location_url, tier, uploaded_at) VALUES($1, $2, $3, $4) RETURNING id"
	updateResourceByIdStmt = "UPDATE resources SET blob_key = $1, location_url = $2, tier = $3, uploaded_at = $4 WHERE id = $5"
	deleteResourceByIdStmt = "DELETE FROM resources WHERE id = $1"
)

func NewRepository() (resource.Repository, error) {
	return &pgxRepository{}, nil
}

func (pr *pgxRepository) SaveResource(ctx context.Context, tx *sql.Tx, resourceEntity *resource.Entity) error {
	if resourceEntity.Id == nil {
		row := tx.QueryRowContext(ctx, insertResourceStmt, resourceEntity.BlobKey, resourceEntity.LocationUrl, string(resourceEntity.Tier), resourceEntity.UploadedAt)
		var id int64
		err := row.Scan(&id)
		if err != nil {
			return err
		}
		resourceEntity.Id = &id
		return nil
	}

	_, err := tx.ExecContext(ctx, updateResourceByIdStmt, resourceEntity.BlobKey, resourceEntity.LocationUrl, string(resourceEntity.Tier), resourceEntity.UploadedAt, *resourceEntity.Id)
	return err
}

func (pr *pgxRepository) FindResourceById(ctx context.Context, tx *sql.Tx, id int64) (*resource.Entity, error) {
	row := tx.QueryRowContext(ctx, findResourceByIdStmt, id)
	var resourceId int64
	var blobKey string
	var locationUrl string
	var tier string
	var uploadedAt time.Time
	err := row.Scan(&resourceId, &blobKey, &locationUrl, &tier, &uploadedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &resource.Entity{
		Id:          &resourceId,
		BlobKey:     blobKey,
		LocationUrl: locationUrl,
		Tier:        directory.Tier(tier),
		UploadedAt:  uploadedAt,
	}, nil
}

func (pr *pgxRepository) DeleteResourceById(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, deleteResourceByIdStmt, id)
	return err
}
