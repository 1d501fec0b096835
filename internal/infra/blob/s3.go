package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/havenline/casekeeper/internal/config"
)

// ErrNotFound is returned by Get when no object exists at the key.
var ErrNotFound = errors.New("blob: object not found")

// S3Deps is the object-storage adapter. It stores opaque ciphertext blobs
// under archive storage keys; every call carries a bounded timeout so a
// stalled store can never wedge a request.
type S3Deps struct {
	Client    *s3.Client
	Bucket    string
	OpTimeout time.Duration
}

func NewS3(ctx context.Context, cfg *config.Config) (*S3Deps, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3.AccessKey,
			cfg.S3.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
		}
		o.UsePathStyle = cfg.S3.UsePathStyle
	})

	timeout := time.Duration(cfg.S3.OpTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &S3Deps{Client: client, Bucket: cfg.S3.Bucket, OpTimeout: timeout}, nil
}

func (d *S3Deps) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.OpTimeout)
}

// Put uploads data under key, overwriting any existing object.
func (d *S3Deps) Put(ctx context.Context, key string, data []byte) error {
	ctx, cancel := d.opCtx(ctx)
	defer cancel()

	_, err := d.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	return err
}

// Get downloads the object at key. Returns ErrNotFound for missing keys.
func (d *S3Deps) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := d.opCtx(ctx)
	defer cancel()

	out, err := d.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

// Delete removes the object at key. Deleting a missing key is a no-op
// success; S3 DeleteObject already behaves that way.
func (d *S3Deps) Delete(ctx context.Context, key string) error {
	ctx, cancel := d.opCtx(ctx)
	defer cancel()

	_, err := d.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.Bucket),
		Key:    aws.String(key),
	})
	return err
}
