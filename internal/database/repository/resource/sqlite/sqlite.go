package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/astghikaramyan/resource-service/internal/database/repository/resource"
	"github.com/astghikaramyan/resource-service/internal/directory"
)

type sqliteRepository struct {
}

const (
	findResourceByIdStmt   = "SELECT id, blob_key, location_url, tier, uploaded_at FROM resources WHERE id = ?"
	insertResourceStmt     = "INSERT INTO resources (blob_key, location_url, tier, uploaded_at) VALUES(?, ?, ?, ?)"
	updateResourceByIdStmt = "UPDATE resources SET blob_key = ?, location_url = ?, tier = ?, uploaded_at = ? WHERE id = ?"
	deleteResourceByIdStmt = "DELETE FROM resources WHERE id = ?"
)

func NewRepository() (resource.Repository, error) {
	return &sqliteRepository{}, nil
}

func convertRowToResourceEntity(resourceRow *sql.Row) (*resource.Entity, error) {
	var id int64
	var blobKey string
	var locationUrl string
	var tier string
	var uploadedAt time.Time
	err := resourceRow.Scan(&id, &blobKey, &locationUrl, &tier, &uploadedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &resource.Entity{
		Id:          &id,
		BlobKey:     blobKey,
		LocationUrl: locationUrl,
		Tier:        directory.Tier(tier),
		UploadedAt:  uploadedAt,
	}, nil
}

func (sr *sqliteRepository) SaveResource(ctx context.Context, tx *sql.Tx, resourceEntity *resource.Entity) error {
	if resourceEntity.Id == nil {
		result, err := tx.ExecContext(ctx, insertResourceStmt, resourceEntity.BlobKey, resourceEntity.LocationUrl, string(resourceEntity.Tier), resourceEntity.UploadedAt)
		if err != nil {
			return err
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		resourceEntity.Id = &id
		return nil
	}

	_, err := tx.ExecContext(ctx, updateResourceByIdStmt, resourceEntity.BlobKey, resourceEntity.LocationUrl, string(resourceEntity.Tier), resourceEntity.UploadedAt, *resourceEntity.Id)
	return err
}

func (sr *sqliteRepository) FindResourceById(ctx context.Context, tx *sql.Tx, id int64) (*resource.Entity, error) {
	row := tx.QueryRowContext(ctx, findResourceByIdStmt, id)
	return convertRowToResourceEntity(row)
}

func (sr *sqliteRepository) DeleteResourceById(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, deleteResourceByIdStmt, id)
	return err
}
