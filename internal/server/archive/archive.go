// Package archive keeps a copy of every record deleted from the remote store.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/agencysync/internal/server/models"
)

// Archiver stores a deleted record somewhere outside the live tables.
type Archiver interface {
	Archive(ctx context.Context, rec *models.Record, deletedBy string, at time.Time) error
}

// NopArchiver drops everything.
type NopArchiver struct{}

func (NopArchiver) Archive(context.Context, *models.Record, string, time.Time) error { return nil }

// Entry is the document written for a deleted record.
type Entry struct {
	Table     string         `json:"table"`
	ID        string         `json:"id"`
	Code      string         `json:"code"`
	OriginID  string         `json:"origin_id,omitempty"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedBy string         `json:"deleted_by"`
	DeletedAt time.Time      `json:"deleted_at"`
}

// Key returns the object key of a record deleted at the given time.
func Key(table, id string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("deleted/%s/%04d/%02d/%s.json", table, at.Year(), int(at.Month()), id)
}

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes deleted records as JSON objects into a bucket.
type S3Archiver struct {
	client putObjectAPI
	bucket string
}

// S3Config carries what NewS3Archiver needs. An empty BaseEndpoint uses the
// AWS endpoint; a non-empty one switches to path-style addressing (MinIO).
type S3Config struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
}

// loadDefaultAWSConfig is a seam for tests.
var loadDefaultAWSConfig = config.LoadDefaultConfig

func NewS3Archiver(ctx context.Context, c S3Config) (*S3Archiver, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")))
	}
	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Archiver{client: client, bucket: c.Bucket}, nil
}

func (a *S3Archiver) Archive(ctx context.Context, rec *models.Record, deletedBy string, at time.Time) error {
	body, err := json.Marshal(Entry{
		Table:     rec.Table,
		ID:        rec.ID,
		Code:      rec.Code,
		OriginID:  rec.OriginID,
		Payload:   rec.Payload,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
		DeletedBy: deletedBy,
		DeletedAt: at.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode archive entry: %w", err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(Key(rec.Table, rec.ID, at)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", Key(rec.Table, rec.ID, at), err)
	}
	return nil
}
