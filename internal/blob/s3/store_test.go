package s3

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/blob"
)

func TestMapErr(t *testing.T) {
	assert.ErrorIs(t, mapErr("k", &types.NoSuchKey{}), blob.ErrNotFound)
	assert.ErrorIs(t, mapErr("k", &types.NotFound{}), blob.ErrNotFound)

	other := errors.New("throttled")
	assert.Equal(t, other, mapErr("k", other))
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}

func TestNewWithStaticCredentials(t *testing.T) {
	s, err := New(context.Background(), Config{
		Bucket:          "memp-attachments",
		Endpoint:        "http://localhost:9000",
		PathStyle:       true,
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
	})
	require.NoError(t, err)
	assert.Equal(t, blob.DriverS3, s.Driver())

	_, err = s.PresignGet(context.Background(), "../bad", 0, "")
	assert.ErrorIs(t, err, blob.ErrInvalidKey)

	url, err := s.PresignGet(context.Background(), "bunker_attachments/a.pdf", 0, "")
	require.NoError(t, err)
	assert.Contains(t, url, "memp-attachments/bunker_attachments/a.pdf")
	assert.NotContains(t, url, "response-content-disposition")

	url, err = s.PresignGet(context.Background(), "bunker_attachments/a.pdf", time.Minute, "BDN 42.pdf")
	require.NoError(t, err)
	assert.Contains(t, url, "response-content-disposition=")
	assert.Contains(t, url, "X-Amz-Expires=60")
}
