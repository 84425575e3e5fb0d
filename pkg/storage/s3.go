// Package storage reads and removes configuration objects from the S3
// bucket that receives account and role definition uploads.
package storage

import (
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/anirudhbiyani/cross-account-manager/pkg/crossaccount"
)

// S3API abstracts the S3 operations the store consumes.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store implements crossaccount.BlobStore on S3.
type Store struct {
	client S3API
}

// NewStore creates a Store.
func NewStore(client S3API) *Store {
	return &Store{client: client}
}

// Get implements crossaccount.BlobStore.
func (s *Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, crossaccount.ErrNotFound("object", bucket+"/"+key)
		}
		return nil, crossaccount.ErrRemote("get object").WithCause(err).WithResource("object", bucket+"/"+key)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, crossaccount.ErrRemote("read object").WithCause(err).WithResource("object", bucket+"/"+key)
	}
	return body, nil
}

// Delete implements crossaccount.BlobStore.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return crossaccount.ErrRemote("delete object").WithCause(err).WithResource("object", bucket+"/"+key)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey"
}
