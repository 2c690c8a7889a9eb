package retention

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"casino-platform/internal/audit"
)

// PutObjectAPI is the slice of the S3 client the archiver uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes archived events as newline-delimited JSON, one object
// per archive run:
//
//	s3://<bucket>/<prefix>/<event_type>/<cutoff>-<uuid>.ndjson
type S3Archiver struct {
	client PutObjectAPI
	bucket string
	prefix string
}

func NewS3Archiver(client PutObjectAPI, bucket, prefix string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix}
}

// NewS3ArchiverFromEnv builds the S3 client from the default AWS credential chain.
func NewS3ArchiverFromEnv(ctx context.Context, region, bucket, prefix string) (*S3Archiver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3Archiver(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func (a *S3Archiver) Archive(ctx context.Context, key ArchiveKey, events EventStream) (int64, error) {
	var (
		buf bytes.Buffer
		n   int64
	)
	enc := json.NewEncoder(&buf)
	err := events(func(e audit.Event) error {
		n++
		return enc.Encode(e)
	})
	if err != nil {
		return 0, fmt.Errorf("encode archive: %w", err)
	}
	if n == 0 {
		return 0, nil
	}

	objectKey := a.objectKey(key)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
		Metadata: map[string]string{
			"event-type":  string(key.EventType),
			"cutoff":      key.Cutoff.UTC().Format("2006-01-02T15:04:05Z"),
			"event-count": fmt.Sprint(n),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("upload archive s3://%s/%s: %w", a.bucket, objectKey, err)
	}
	return n, nil
}

func (a *S3Archiver) objectKey(key ArchiveKey) string {
	name := key.Cutoff.UTC().Format("20060102T150405Z") + "-" + uuid.NewString() + ".ndjson"
	return path.Join(a.prefix, string(key.EventType), name)
}
