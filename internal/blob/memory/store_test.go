package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/blob"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	assert.Equal(t, blob.DriverMemory, s.Driver())

	_, err := s.Head(ctx, "bunker_attachments/missing.pdf")
	require.ErrorIs(t, err, blob.ErrNotFound)

	info, err := s.Put(ctx, "bunker_attachments/a.pdf", strings.NewReader("%PDF-1.4"), blob.PutOptions{
		ContentType: "application/pdf",
		Metadata:    map[string]string{"original_name": "BDN 12.pdf"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(8), info.Size)

	_, err = s.Put(ctx, "bunker_attachments/a.pdf", strings.NewReader("again"), blob.PutOptions{})
	require.ErrorIs(t, err, blob.ErrExists)

	got, rc, err := s.Get(ctx, "bunker_attachments/a.pdf")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "%PDF-1.4", string(body))
	assert.Equal(t, "BDN 12.pdf", got.Metadata["original_name"])

	_, err = s.Put(ctx, "voyage_attachments/b.pdf", strings.NewReader("x"), blob.PutOptions{})
	require.NoError(t, err)
	list, err := s.List(ctx, "bunker_attachments/")
	require.NoError(t, err)
	require.Len(t, list, 1)

	ok, err := s.Delete(ctx, "bunker_attachments/a.pdf")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Delete(ctx, "bunker_attachments/a.pdf")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.PresignGet(ctx, "voyage_attachments/b.pdf", 0, "")
	assert.ErrorIs(t, err, blob.ErrUnsupported)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("fail") }

func TestPutRejectsBadInput(t *testing.T) {
	s := New()
	_, err := s.Put(context.Background(), "../escape", strings.NewReader("x"), blob.PutOptions{})
	require.ErrorIs(t, err, blob.ErrInvalidKey)

	_, err = s.Put(context.Background(), "ok", failingReader{}, blob.PutOptions{})
	require.Error(t, err)
}
