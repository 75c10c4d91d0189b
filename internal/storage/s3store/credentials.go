// Package s3store keeps the admin password hash as a JSON object in S3.
package s3store

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/go-faster/errors"

	"github.com/xenking/plantpass/internal/domain/auth"
)

// API is the part of the S3 client the store uses.
type API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config locates the credential object.
type Config struct {
	Bucket   string
	Key      string
	Region   string
	Endpoint string // MinIO, LocalStack
}

type document struct {
	AdminPasswordHash string `json:"admin_password_hash"`
}

var _ auth.CredentialStore = (*CredentialStore)(nil)

// CredentialStore implements auth.CredentialStore on a single S3 object.
type CredentialStore struct {
	client API
	bucket string
	key    string
}

// NewCredentialStore loads the default AWS config and creates a store.
func NewCredentialStore(ctx context.Context, cfg Config) (*CredentialStore, error) {
	if cfg.Bucket == "" || cfg.Key == "" {
		return nil, errors.New("s3 bucket and key are required")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewCredentialStoreWithClient(client, cfg.Bucket, cfg.Key), nil
}

// NewCredentialStoreWithClient creates a store over an existing client.
func NewCredentialStoreWithClient(client API, bucket, key string) *CredentialStore {
	return &CredentialStore{client: client, bucket: bucket, key: key}
}

// PasswordHash returns auth.ErrNotFound when the object does not exist.
func (s *CredentialStore) PasswordHash(ctx context.Context) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get s3://%s/%s", s.bucket, s.key)
	}
	defer func() { _ = out.Body.Close() }()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read credential object")
	}
	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, errors.Wrap(err, "decode credential object")
	}
	if doc.AdminPasswordHash == "" {
		return nil, auth.ErrNotFound
	}
	return []byte(doc.AdminPasswordHash), nil
}

// SetPasswordHash overwrites the object.
func (s *CredentialStore) SetPasswordHash(ctx context.Context, hash []byte) error {
	body, err := json.Marshal(document{AdminPasswordHash: string(hash)})
	if err != nil {
		return errors.Wrap(err, "encode credential object")
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return errors.Wrapf(err, "put s3://%s/%s", s.bucket, s.key)
	}
	return nil
}
