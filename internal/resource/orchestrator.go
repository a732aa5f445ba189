package resource

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/astghikaramyan/resource-service/internal/apperror"
	"github.com/astghikaramyan/resource-service/internal/blob"
	"github.com/astghikaramyan/resource-service/internal/catalog"
	"github.com/astghikaramyan/resource-service/internal/database"
	outboxEventRepository "github.com/astghikaramyan/resource-service/internal/database/repository/outboxevent"
	resourceRepository "github.com/astghikaramyan/resource-service/internal/database/repository/resource"
	"github.com/astghikaramyan/resource-service/internal/directory"
	"github.com/astghikaramyan/resource-service/internal/events"
	"github.com/astghikaramyan/resource-service/internal/retry"
	"github.com/astghikaramyan/resource-service/internal/traceid"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const maxIdListLength = 200

const (
	invalidIdFormatMessage    = "Invalid ID format: '%s' for ID. Only positive integers are allowed"
	invalidIdValueMessage     = "Invalid value '%s' for ID. Must be a positive integer"
	idListTooLongMessage      = "CSV string is too long: received %d characters, maximum allowed is 200"
	resourceNotFoundMessage   = "Resource with ID=%d not found"
	storageFailureMessage     = "Failed to upload file to S3"
	persistenceFailureMessage = "Resource operation could not be completed"
)

// stepPolicy states, per workflow step, how failures are retried and
// whether a failure aborts the rest of a batch or only the current item.
type stepPolicy struct {
	retryPolicy         retry.Policy
	abortBatchOnFailure bool
}

// Orchestrator owns the upload and delete workflows and the compensation
// logic keeping the blob store and the resource records consistent. Steps
// commit independently; there is deliberately no cross-step transaction.
type Orchestrator struct {
	db           database.Database
	resources    resourceRepository.Repository
	outboxEvents outboxEventRepository.Repository
	blobs        blob.Gateway
	locations    directory.Resolver
	songs        catalog.Client
	publisher    events.Publisher
	outboxNotify func()

	persistPolicy        stepPolicy
	blobDeletePolicy     stepPolicy
	metadataDeletePolicy stepPolicy
}

type Option func(*Orchestrator)

// WithOutboxNotifier wires the outbox processor's trigger so freshly
// committed outbox rows are drained ahead of the next scheduled tick.
func WithOutboxNotifier(notify func()) Option {
	return func(o *Orchestrator) {
		o.outboxNotify = notify
	}
}

func NewOrchestrator(db database.Database, resources resourceRepository.Repository, outboxEvents outboxEventRepository.Repository,
	blobs blob.Gateway, locations directory.Resolver, songs catalog.Client, publisher events.Publisher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		db:           db,
		resources:    resources,
		outboxEvents: outboxEvents,
		blobs:        blobs,
		locations:    locations,
		songs:        songs,
		publisher:    publisher,
		persistPolicy: stepPolicy{
			retryPolicy: retry.Policy{MaxAttempts: 2, Delay: 1 * time.Second},
		},
		blobDeletePolicy: stepPolicy{
			// Retrying lives inside the blob gateway; a failure here is
			// already a retry-exhausted one and kills the whole batch.
			abortBatchOnFailure: true,
		},
		metadataDeletePolicy: stepPolicy{
			retryPolicy:         retry.Policy{MaxAttempts: 3, Delay: 1 * time.Second},
			abortBatchOnFailure: false,
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Upload writes the bytes to the staging tier, persists the resource
// record together with its outbox row, and publishes resource-created.
// A failed record persist compensates by deleting the just-written blob; a
// failed publish is non-fatal because the outbox row guarantees eventual
// delivery.
func (o *Orchestrator) Upload(ctx context.Context, fileBytes []byte) (*resourceRepository.Entity, error) {
	blobKey := "resources/" + uuid.NewString() + ".mp3"
	staging := directory.LocationForTier(o.locations.ResolveLocations(ctx), directory.TierStaging)
	if staging == nil {
		return nil, apperror.New(apperror.KindStorageFailure, storageFailureMessage)
	}

	err := o.blobs.Put(ctx, staging.Bucket, blobKey, fileBytes)
	if err != nil {
		return nil, err
	}

	resourceEntity := &resourceRepository.Entity{
		BlobKey:     blobKey,
		LocationUrl: prepareFileUrl(staging, blobKey),
		Tier:        directory.TierStaging,
		UploadedAt:  time.Now(),
	}
	outboxEventId, err := o.persistResourceWithOutboxEvent(ctx, resourceEntity)
	if err != nil {
		compensationErr := o.blobs.Delete(ctx, staging.Bucket, blobKey)
		if compensationErr != nil {
			slog.Error(fmt.Sprint("Failed to delete file bytes from storage for not saved resource for s3Key="+blobKey+": ", compensationErr))
		}
		return nil, apperror.Wrap(apperror.KindPersistenceFailure, persistenceFailureMessage, err)
	}
	o.notifyOutbox()

	err = o.publisher.Publish(ctx, events.TopicResourceCreated, events.Event{
		ResourceId: *resourceEntity.Id,
		TraceId:    traceid.FromContextOrNew(ctx),
	})
	if err != nil {
		// The outbox row stays unprocessed and is delivered on a later tick.
		slog.Error(fmt.Sprintf("Failed to send message through message broker for resource ID=%d after retries: %v", *resourceEntity.Id, err))
		return resourceEntity, nil
	}
	o.markOutboxEventProcessed(ctx, outboxEventId)
	return resourceEntity, nil
}

// GetBytes validates the id and returns the stored bytes for the resource.
func (o *Orchestrator) GetBytes(ctx context.Context, id int64) ([]byte, error) {
	if id <= 0 {
		return nil, apperror.Newf(apperror.KindInvalidInput, invalidIdValueMessage, strconv.FormatInt(id, 10))
	}
	resourceEntity, err := o.findResourceById(ctx, id)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistenceFailure, persistenceFailureMessage, err)
	}
	if resourceEntity == nil || resourceEntity.BlobKey == "" {
		return nil, apperror.Newf(apperror.KindNotFound, resourceNotFoundMessage, id)
	}
	location := o.locationForRecord(ctx, resourceEntity)
	if location == nil {
		return nil, apperror.Newf(apperror.KindNotFound, resourceNotFoundMessage, id)
	}
	fileBytes, err := o.blobs.Get(ctx, location.Bucket, resourceEntity.BlobKey)
	if err == blob.ErrBlobNotFound {
		return nil, apperror.Newf(apperror.KindNotFound, resourceNotFoundMessage, id)
	}
	if err != nil {
		return nil, err
	}
	return fileBytes, nil
}

// DeleteByIds deletes the resources named by the comma-separated id list
// and returns the ids actually removed. Validation rejects the whole
// request before any deletion. A blob-delete failure aborts the batch; a
// metadata or record deletion failure restores the blob from the bytes
// fetched beforehand and moves on to the next id.
func (o *Orchestrator) DeleteByIds(ctx context.Context, idList string) ([]int64, error) {
	ids, err := parseIdList(idList)
	if err != nil {
		return nil, err
	}
	removedIds := []int64{}
	for _, id := range ids {
		resourceEntity, err := o.findResourceById(ctx, id)
		if err != nil {
			return removedIds, apperror.Wrap(apperror.KindPersistenceFailure, persistenceFailureMessage, err)
		}
		if resourceEntity == nil {
			continue
		}
		location := o.locationForRecord(ctx, resourceEntity)
		if location == nil {
			slog.Error(fmt.Sprintf("No storage location resolvable for resource ID=%d, skipping", id))
			continue
		}

		// Kept in memory for recovery if the metadata deletion fails.
		fileBytes, err := o.blobs.Get(ctx, location.Bucket, resourceEntity.BlobKey)
		if err == blob.ErrBlobNotFound {
			fileBytes = nil
		} else if err != nil {
			return removedIds, err
		}

		err = o.blobs.Delete(ctx, location.Bucket, resourceEntity.BlobKey)
		if err != nil {
			if o.blobDeletePolicy.abortBatchOnFailure {
				return removedIds, err
			}
			slog.Error(fmt.Sprintf("Failed to delete blob for resource ID=%d: %v", id, err))
			continue
		}

		err = o.metadataDeletePolicy.retryPolicy.Do(ctx, func() error {
			return o.deleteResourceWithMetadata(ctx, id)
		})
		if err != nil {
			o.recoverDeletedBlob(ctx, location.Bucket, resourceEntity.BlobKey, fileBytes, id)
			if o.metadataDeletePolicy.abortBatchOnFailure {
				return removedIds, err
			}
			slog.Error(fmt.Sprintf("Failed to delete resource with ID=%d after retries: %v", id, err))
			continue
		}

		removedIds = append(removedIds, id)
		err = o.publisher.Publish(ctx, events.TopicResourceDeleted, events.Event{
			ResourceId: id,
			TraceId:    traceid.FromContextOrNew(ctx),
		})
		if err != nil {
			slog.Error(fmt.Sprintf("Failed to send message through message broker for deleted resource with ID=%d after retries: %v", id, err))
		}
	}
	return removedIds, nil
}

func (o *Orchestrator) persistResourceWithOutboxEvent(ctx context.Context, resourceEntity *resourceRepository.Entity) (ulid.ULID, error) {
	var outboxEventId ulid.ULID
	err := o.persistPolicy.retryPolicy.Do(ctx, func() error {
		// Fresh entities per attempt: a failed commit must not leave a
		// stale id behind and turn the next insert into an update.
		attemptEntity := *resourceEntity
		attemptEntity.Id = nil
		tx, err := o.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: false})
		if err != nil {
			return err
		}
		err = o.resources.SaveResource(ctx, tx, &attemptEntity)
		if err != nil {
			tx.Rollback()
			return err
		}
		outboxEvent := outboxEventRepository.Entity{ResourceId: *attemptEntity.Id}
		err = o.outboxEvents.SaveOutboxEvent(ctx, tx, &outboxEvent)
		if err != nil {
			tx.Rollback()
			return err
		}
		err = tx.Commit()
		if err != nil {
			return err
		}
		resourceEntity.Id = attemptEntity.Id
		outboxEventId = *outboxEvent.Id
		return nil
	})
	return outboxEventId, err
}

// deleteResourceWithMetadata removes the catalog entry and the local
// record as one logical step. The record deletion re-checks existence only
// implicitly: a concurrent delete makes the statement a no-op.
func (o *Orchestrator) deleteResourceWithMetadata(ctx context.Context, id int64) error {
	err := o.songs.DeleteSongByResourceId(ctx, id)
	if err != nil {
		return err
	}
	tx, err := o.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: false})
	if err != nil {
		return apperror.Wrap(apperror.KindPersistenceFailure, persistenceFailureMessage, err)
	}
	err = o.resources.DeleteResourceById(ctx, tx, id)
	if err != nil {
		tx.Rollback()
		return apperror.Wrap(apperror.KindPersistenceFailure, persistenceFailureMessage, err)
	}
	err = tx.Commit()
	if err != nil {
		return apperror.Wrap(apperror.KindPersistenceFailure, persistenceFailureMessage, err)
	}
	return nil
}

func (o *Orchestrator) recoverDeletedBlob(ctx context.Context, bucket string, blobKey string, fileBytes []byte, id int64) {
	if fileBytes == nil {
		return
	}
	err := o.blobs.Put(ctx, bucket, blobKey, fileBytes)
	if err != nil {
		slog.Error(fmt.Sprintf("Failed to recover deleted file bytes in storage for resource ID=%d: %v", id, err))
	}
}

func (o *Orchestrator) findResourceById(ctx context.Context, id int64) (*resourceRepository.Entity, error) {
	tx, err := o.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	resourceEntity, err := o.resources.FindResourceById(ctx, tx, id)
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

func (o *Orchestrator) locationForRecord(ctx context.Context, resourceEntity *resourceRepository.Entity) *directory.StorageLocation {
	locations := o.locations.ResolveLocations(ctx)
	return directory.LocationForTier(locations, resourceEntity.Tier)
}

func (o *Orchestrator) markOutboxEventProcessed(ctx context.Context, outboxEventId ulid.ULID) {
	tx, err := o.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: false})
	if err != nil {
		slog.Warn(fmt.Sprint("Could not mark outbox event as processed, it will be re-delivered: ", err))
		return
	}
	err = o.outboxEvents.MarkOutboxEventsProcessed(ctx, tx, []ulid.ULID{outboxEventId})
	if err != nil {
		tx.Rollback()
		slog.Warn(fmt.Sprint("Could not mark outbox event as processed, it will be re-delivered: ", err))
		return
	}
	err = tx.Commit()
	if err != nil {
		slog.Warn(fmt.Sprint("Could not mark outbox event as processed, it will be re-delivered: ", err))
	}
}

func (o *Orchestrator) notifyOutbox() {
	if o.outboxNotify != nil {
		o.outboxNotify()
	}
}

func prepareFileUrl(location *directory.StorageLocation, blobKey string) string {
	return strings.TrimRight(location.Path, "/") + "/" + location.Bucket + "/" + blobKey
}

func parseIdList(idList string) ([]int64, error) {
	if len(idList) > maxIdListLength {
		return nil, apperror.Newf(apperror.KindInvalidInput, idListTooLongMessage, len(idList))
	}
	if strings.TrimSpace(idList) == "" {
		return []int64{}, nil
	}
	tokens := strings.Split(idList, ",")
	ids := make([]int64, 0, len(tokens))
	for _, token := range tokens {
		id, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			return nil, apperror.Newf(apperror.KindInvalidInput, invalidIdFormatMessage, token)
		}
		if id <= 0 {
			return nil, apperror.Newf(apperror.KindInvalidInput, invalidIdValueMessage, token)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
