package migration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/astghikaramyan/resource-service/internal/blob"
	"github.com/astghikaramyan/resource-service/internal/database"
	resourceRepository "github.com/astghikaramyan/resource-service/internal/database/repository/resource"
	"github.com/astghikaramyan/resource-service/internal/directory"
	"github.com/astghikaramyan/resource-service/internal/events"
	"github.com/astghikaramyan/resource-service/internal/lifecycle"
	"github.com/astghikaramyan/resource-service/internal/task"
	"github.com/astghikaramyan/resource-service/internal/traceid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const consumerTag = "resource-service-tier-migrator"

type consumeChannel interface {
	Consume(queue string, consumer string, autoAck bool, exclusive bool, noLocal bool, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Consumer moves freshly uploaded resources from the staging tier to the
// permanent one. It consumes resource-created messages, copies the blob
// into the permanent bucket, rewrites the record and only then removes the
// staging copy. Re-deliveries of already migrated resources are
// acknowledged without side effects.
type Consumer struct {
	channel        consumeChannel
	db             database.Database
	resources      resourceRepository.Repository
	blobs          blob.Gateway
	locations      directory.Resolver
	taskHandle     *task.TaskHandle
	stateValidator *lifecycle.StateValidator
}

func NewConsumer(channel consumeChannel, db database.Database, resources resourceRepository.Repository,
	blobs blob.Gateway, locations directory.Resolver) (*Consumer, error) {
	stateValidator, err := lifecycle.New("TierMigrationConsumer")
	if err != nil {
		return nil, err
	}
	return &Consumer{
		channel:        channel,
		db:             db,
		resources:      resources,
		blobs:          blobs,
		locations:      locations,
		stateValidator: stateValidator,
	}, nil
}

func (c *Consumer) Start() error {
	err := c.stateValidator.Start()
	if err != nil {
		return err
	}
	deliveries, err := c.channel.Consume(events.TopicResourceCreated, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	c.taskHandle = task.Start(func(cancelTask *atomic.Bool) {
		for delivery := range deliveries {
			if cancelTask.Load() {
				return
			}
			c.handleDelivery(delivery)
		}
	})
	return nil
}

// Stop cancels the consume loop and waits for it to drain. The owning
// AMQP channel must be closed by the caller so the delivery stream ends.
func (c *Consumer) Stop() error {
	err := c.stateValidator.Stop()
	if err != nil {
		return err
	}
	c.taskHandle.Cancel()
	c.taskHandle.Join()
	return nil
}

func (c *Consumer) handleDelivery(delivery amqp.Delivery) {
	var event events.Event
	err := json.Unmarshal(delivery.Body, &event)
	if err != nil {
		slog.Error(fmt.Sprint("Dropping undecodable resource-created message: ", err))
		delivery.Nack(false, false)
		return
	}
	ctx := context.Background()
	if event.TraceId != "" {
		ctx = traceid.ContextWith(ctx, event.TraceId)
	}
	err = c.migrateResource(ctx, event.ResourceId)
	if err != nil {
		slog.Error(fmt.Sprintf("Failed to migrate resource ID=%d to permanent storage, requeueing: %v", event.ResourceId, err))
		delivery.Nack(false, true)
		return
	}
	delivery.Ack(false)
}

func (c *Consumer) migrateResource(ctx context.Context, resourceId int64) error {
	resourceEntity, err := c.findResourceById(ctx, resourceId)
	if err != nil {
		return err
	}
	if resourceEntity == nil {
		slog.Warn(fmt.Sprintf("Resource ID=%d no longer exists, skipping migration", resourceId))
		return nil
	}
	if resourceEntity.Tier == directory.TierPermanent {
		return nil
	}

	locations := c.locations.ResolveLocations(ctx)
	staging := directory.LocationForTier(locations, directory.TierStaging)
	permanent := directory.LocationForTier(locations, directory.TierPermanent)
	if staging == nil || permanent == nil {
		return fmt.Errorf("no storage location resolvable for resource ID=%d", resourceId)
	}

	fileBytes, err := c.blobs.Get(ctx, staging.Bucket, resourceEntity.BlobKey)
	if err == blob.ErrBlobNotFound {
		slog.Warn(fmt.Sprintf("Staging blob for resource ID=%d is gone, skipping migration", resourceId))
		return nil
	}
	if err != nil {
		return err
	}
	err = c.blobs.Put(ctx, permanent.Bucket, resourceEntity.BlobKey, fileBytes)
	if err != nil {
		return err
	}

	resourceEntity.Tier = directory.TierPermanent
	resourceEntity.LocationUrl = strings.TrimRight(permanent.Path, "/") + "/" + permanent.Bucket + "/" + resourceEntity.BlobKey
	err = c.saveResource(ctx, resourceEntity)
	if err != nil {
		return err
	}

	// The permanent copy and the record are in place; losing the staging
	// delete only leaves an orphan blob behind.
	err = c.blobs.Delete(ctx, staging.Bucket, resourceEntity.BlobKey)
	if err != nil {
		slog.Warn(fmt.Sprintf("Failed to delete staging blob for migrated resource ID=%d: %v", resourceId, err))
	}
	slog.Info(fmt.Sprintf("Migrated resource ID=%d to permanent storage", resourceId))
	return nil
}

func (c *Consumer) findResourceById(ctx context.Context, id int64) (*resourceRepository.Entity, error) {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	resourceEntity, err := c.resources.FindResourceById(ctx, tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	err = tx.Commit()
	if err != nil {
		return nil, err
	}
	return resourceEntity, nil
}

func (c *Consumer) saveResource(ctx context.Context, resourceEntity *resourceRepository.Entity) error {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: false})
	if err != nil {
		return err
	}
	err = c.resources.SaveResource(ctx, tx, resourceEntity)
	if err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
