package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/astghikaramyan/resource-service/internal/apperror"
	"github.com/astghikaramyan/resource-service/internal/retry"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// ErrBlobNotFound distinguishes a missing object from a transient storage
// fault; callers map it to NotFound instead of retrying.
var ErrBlobNotFound = errors.New("blob not found")

// Gateway moves bytes in and out of object storage with bounded retry and
// uniform error translation. Put and Delete are idempotent for the same
// key; the underlying transport error never reaches the caller.
type Gateway interface {
	Put(ctx context.Context, bucket string, key string, data []byte) error
	Get(ctx context.Context, bucket string, key string) ([]byte, error)
	Delete(ctx context.Context, bucket string, key string) error
}

// objectApi is the slice of the S3 client surface the gateway needs;
// satisfied by *s3.Client.
type objectApi interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type s3Gateway struct {
	client      objectApi
	retryPolicy retry.Policy
}

func NewS3Gateway(client objectApi) Gateway {
	return &s3Gateway{
		client: client,
		retryPolicy: retry.Policy{
			MaxAttempts: 3,
			Delay:       1 * time.Second,
			Multiplier:  2,
			RetryableIf: func(err error) bool {
				return !errors.Is(err, ErrBlobNotFound)
			},
		},
	}
}

func (g *s3Gateway) Put(ctx context.Context, bucket string, key string, data []byte) error {
	err := g.retryPolicy.Do(ctx, func() error {
		_, err := g.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		})
		return err
	})
	if err != nil {
		return apperror.Wrap(apperror.KindStorageFailure, "Failed to persist file to S3 for s3Key: "+key, err)
	}
	return nil
}

func (g *s3Gateway) Get(ctx context.Context, bucket string, key string) ([]byte, error) {
	var data []byte
	err := g.retryPolicy.Do(ctx, func() error {
		getObjectResult, err := g.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return translateGetError(err)
		}
		defer getObjectResult.Body.Close()
		data, err = io.ReadAll(getObjectResult.Body)
		return err
	})
	if errors.Is(err, ErrBlobNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.KindStorageFailure, "Failed to retrieve file from S3 for s3Key: "+key, err)
	}
	return data, nil
}

func (g *s3Gateway) Delete(ctx context.Context, bucket string, key string) error {
	err := g.retryPolicy.Do(ctx, func() error {
		_, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil {
		return apperror.Wrap(apperror.KindStorageFailure, "Failed to delete file from S3 for s3Key: "+key, err)
	}
	return nil
}

func translateGetError(err error) error {
	var noSuchKeyError *types.NoSuchKey
	if errors.As(err, &noSuchKeyError) {
		return ErrBlobNotFound
	}
	var ae smithy.APIError
	if errors.As(err, &ae) && ae.ErrorCode() == "NoSuchKey" {
		return ErrBlobNotFound
	}
	return err
}
