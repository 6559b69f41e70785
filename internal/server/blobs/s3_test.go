package blobs

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubAWS(t *testing.T) {
	t.Helper()
	origLoad, origPut := loadDefaultAWSConfig, putObject
	t.Cleanup(func() { loadDefaultAWSConfig, putObject = origLoad, origPut })

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{Region: "us-east-1"}, nil
	}
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{})
	require.Error(t, err)
}

func TestNewS3Store_ConfigError(t *testing.T) {
	stubAWS(t)
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no creds")
	}

	_, err := NewS3Store(context.Background(), S3Config{Bucket: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no creds")
}

func TestPut(t *testing.T) {
	stubAWS(t)

	var got *s3.PutObjectInput
	var body []byte
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		got = in
		var err error
		body, err = io.ReadAll(in.Body)
		require.NoError(t, err)
		return &s3.PutObjectOutput{}, nil
	}

	st, err := NewS3Store(context.Background(), S3Config{Region: "us-east-1", Endpoint: "http://localhost:9000", Bucket: "plant-data"})
	require.NoError(t, err)

	require.NoError(t, st.Put(context.Background(), "plants/x/1", []byte(`{"a":1}`), "application/json"))
	assert.Equal(t, "plant-data", aws.ToString(got.Bucket))
	assert.Equal(t, "plants/x/1", aws.ToString(got.Key))
	assert.Equal(t, int64(7), aws.ToInt64(got.ContentLength))
	assert.Equal(t, "application/json", aws.ToString(got.ContentType))
	assert.Equal(t, `{"a":1}`, string(body))
}

func TestPut_Error(t *testing.T) {
	stubAWS(t)
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return nil, errors.New("access denied")
	}

	st, err := NewS3Store(context.Background(), S3Config{Bucket: "b"})
	require.NoError(t, err)
	err = st.Put(context.Background(), "k", nil, "application/json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3 put k")
}

func TestNewKey(t *testing.T) {
	k1 := NewKey("plant-1", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	k2 := NewKey("plant-1", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, strings.HasPrefix(k1, "plants/plant-1/2025/03/01/"))
	assert.NotEqual(t, k1, k2)
}
