package objectacl

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
)

// gcsBucket is the slice of a GCS bucket the store needs.
type gcsBucket interface {
	Metadata(ctx context.Context, key string) (map[string]string, error)
	Update(ctx context.Context, key string, md map[string]string, public bool) error
}

// GCSStore keeps ACLs as custom metadata plus an allUsers reader grant on
// GCS objects.
type GCSStore struct {
	bucket gcsBucket
	client *storage.Client
}

// NewGCSStore creates a GCS-backed store using application default credentials.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSStore{
		bucket: handleBucket{h: client.Bucket(bucket)},
		client: client,
	}, nil
}

func (s *GCSStore) Get(ctx context.Context, key string) (*ACL, error) {
	md, err := s.bucket.Metadata(ctx, key)
	if err != nil {
		return nil, err
	}
	return fromMetadata(key, md), nil
}

func (s *GCSStore) Set(ctx context.Context, key string, acl ACL) error {
	md, err := s.bucket.Metadata(ctx, key)
	if err != nil {
		return err
	}
	return s.bucket.Update(ctx, key, mergeMetadata(md, acl), acl.Visibility == Public)
}

// Close closes the GCS client.
func (s *GCSStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

type handleBucket struct {
	h *storage.BucketHandle
}

func (b handleBucket) Metadata(ctx context.Context, key string) (map[string]string, error) {
	attrs, err := b.h.Object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("gcs attrs: %w", err)
	}
	return attrs.Metadata, nil
}

func (b handleBucket) Update(ctx context.Context, key string, md map[string]string, public bool) error {
	obj := b.h.Object(key)
	if _, err := obj.Update(ctx, storage.ObjectAttrsToUpdate{Metadata: md}); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("gcs update: %w", err)
	}

	acl := obj.ACL()
	if public {
		if err := acl.Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
			return fmt.Errorf("gcs grant public read: %w", err)
		}
		return nil
	}
	rules, err := acl.List(ctx)
	if err != nil {
		return fmt.Errorf("gcs list acl: %w", err)
	}
	for _, r := range rules {
		if r.Entity == storage.AllUsers {
			if err := acl.Delete(ctx, storage.AllUsers); err != nil {
				return fmt.Errorf("gcs revoke public read: %w", err)
			}
			break
		}
	}
	return nil
}
