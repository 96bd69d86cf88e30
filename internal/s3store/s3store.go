// Package s3store persists a system's document as a single object in an
// S3-compatible bucket (AWS S3 or MinIO). The object body is the same
// indented JSON document the file backend writes.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/mesh-intelligence/recordkeeper/internal/jsonfile"
	"github.com/mesh-intelligence/recordkeeper/pkg/types"
)

const defaultRegion = "us-east-1"

// Persister reads and writes one document object.
type Persister struct {
	client *s3.Client
	bucket string
	key    string
}

// New builds a client from the default AWS credential chain and cfg, and
// returns a Persister for object document under cfg.Prefix.
func New(ctx context.Context, cfg types.S3Config, document string) (*Persister, error) {
	if cfg.Bucket == "" {
		return nil, types.ErrS3BucketEmpty
	}
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithClient(newClient(awsCfg, cfg), cfg, document), nil
}

// NewWithClient returns a Persister using an existing client.
func NewWithClient(client *s3.Client, cfg types.S3Config, document string) *Persister {
	return &Persister{client: client, bucket: cfg.Bucket, key: ObjectKey(cfg.Prefix, document)}
}

func newClient(awsCfg aws.Config, cfg types.S3Config, extra ...func(*s3.Options)) *s3.Client {
	opts := []func(*s3.Options){func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	}}
	return s3.NewFromConfig(awsCfg, append(opts, extra...)...)
}

// ObjectKey joins prefix and document with exactly one slash.
func ObjectKey(prefix, document string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return document
	}
	return prefix + "/" + document
}

// Key returns the object key.
func (p *Persister) Key() string { return p.key }

// Load fetches and decodes the object. A missing object yields
// types.ErrNoDocument.
func (p *Persister) Load(ctx context.Context) (types.Snapshot, error) {
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &p.bucket, Key: &p.key})
	if err != nil {
		if isNotFound(err) {
			return nil, types.ErrNoDocument
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", p.bucket, p.key, err)
	}
	defer func() { _ = out.Body.Close() }()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", p.bucket, p.key, err)
	}
	snap, err := jsonfile.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("parsing s3://%s/%s: %w", p.bucket, p.key, err)
	}
	return snap, nil
}

// Save replaces the object. A single PutObject is atomic from the
// reader's point of view.
func (p *Persister) Save(ctx context.Context, snap types.Snapshot) error {
	data, err := jsonfile.Encode(snap)
	if err != nil {
		return err
	}
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &p.bucket,
		Key:           &p.key,
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", p.bucket, p.key, err)
	}
	return nil
}

// Close is a no-op; the client holds no per-document resources.
func (p *Persister) Close() error { return nil }

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}
