package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/agencysync/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	if in.Body != nil {
		f.body, _ = io.ReadAll(in.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestKey(t *testing.T) {
	at := time.Date(2025, 3, 9, 23, 0, 0, 0, time.FixedZone("X", -3*3600))
	assert.Equal(t, "deleted/customers/2025/03/c-1.json", Key("customers", "c-1", at))
}

func TestS3Archiver_Archive(t *testing.T) {
	fake := &fakeS3{}
	a := &S3Archiver{client: fake, bucket: "archive"}
	at := time.Date(2025, 11, 2, 8, 0, 0, 0, time.UTC)

	rec := &models.Record{Table: "bookings", ID: "b-1", Code: "B2025-0001", Payload: map[string]any{"pax": 2.0}}
	require.NoError(t, a.Archive(context.Background(), rec, "dev-9", at))

	assert.Equal(t, "archive", aws.ToString(fake.in.Bucket))
	assert.Equal(t, "deleted/bookings/2025/11/b-1.json", aws.ToString(fake.in.Key))
	assert.Equal(t, "application/json", aws.ToString(fake.in.ContentType))

	var got Entry
	require.NoError(t, json.Unmarshal(fake.body, &got))
	assert.Equal(t, "B2025-0001", got.Code)
	assert.Equal(t, "dev-9", got.DeletedBy)
	assert.Equal(t, at, got.DeletedAt)
	assert.Equal(t, 2.0, got.Payload["pax"])
}

func TestS3Archiver_PutError(t *testing.T) {
	a := &S3Archiver{client: &fakeS3{err: errors.New("denied")}, bucket: "archive"}

	err := a.Archive(context.Background(), &models.Record{Table: "t", ID: "1"}, "d", time.Now())
	assert.ErrorContains(t, err, "denied")
}

func TestNewS3Archiver(t *testing.T) {
	a, err := NewS3Archiver(context.Background(), S3Config{
		Bucket: "b", Region: "us-east-1", BaseEndpoint: "http://127.0.0.1:9000",
		AccessKey: "minio", SecretKey: "minio123",
	})
	require.NoError(t, err)
	assert.Equal(t, "b", a.bucket)
	assert.NotNil(t, a.client)
}

func TestNewS3Archiver_ConfigError(t *testing.T) {
	orig := loadDefaultAWSConfig
	loadDefaultAWSConfig = func(context.Context, ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}
	defer func() { loadDefaultAWSConfig = orig }()

	_, err := NewS3Archiver(context.Background(), S3Config{Bucket: "b"})
	assert.ErrorContains(t, err, "no config")
}

func TestNopArchiver(t *testing.T) {
	var a Archiver = NopArchiver{}
	assert.NoError(t, a.Archive(context.Background(), &models.Record{}, "", time.Now()))
}
