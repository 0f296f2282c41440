package objectacl

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3Client is an interface for testability.
type s3Client interface {
	HeadObject(ctx context.Context, input *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, input *s3.CopyObjectInput, opts ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// S3Store keeps ACLs as user metadata plus a canned ACL on S3 objects.
type S3Store struct {
	client s3Client
	bucket string
}

func NewS3Store(cfg S3Config) *S3Store {
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: true,
	}
	if cfg.AccessKey != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return &S3Store{client: s3.New(opts), bucket: cfg.Bucket}
}

func (s *S3Store) Get(ctx context.Context, key string) (*ACL, error) {
	out, err := s.head(ctx, key)
	if err != nil {
		return nil, err
	}
	return fromMetadata(key, out.Metadata), nil
}

// Set rewrites the object's metadata in place by copying it onto itself.
func (s *S3Store) Set(ctx context.Context, key string, acl ACL) error {
	out, err := s.head(ctx, key)
	if err != nil {
		return err
	}

	canned := types.ObjectCannedACLPrivate
	if acl.Visibility == Public {
		canned = types.ObjectCannedACLPublicRead
	}

	_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            aws.String(s.bucket),
		Key:               aws.String(key),
		CopySource:        aws.String(url.PathEscape(s.bucket + "/" + key)),
		MetadataDirective: types.MetadataDirectiveReplace,
		Metadata:          mergeMetadata(out.Metadata, acl),
		ContentType:       out.ContentType,
		ACL:               canned,
	})
	if err != nil {
		return fmt.Errorf("s3 copy object: %w", err)
	}
	return nil
}

func (s *S3Store) head(ctx context.Context, key string) (*s3.HeadObjectOutput, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("s3 head object: %w", err)
	}
	return out, nil
}
