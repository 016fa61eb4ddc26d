package attachments

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/blob"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/blob/memory"
)

type upload struct {
	name, ctype, body string
}

func fileHeaders(t *testing.T, uploads ...upload) []*multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, u := range uploads {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="attachments"; filename="`+u.name+`"`)
		if u.ctype != "" {
			h.Set("Content-Type", u.ctype)
		}
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = io.WriteString(part, u.body)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	return form.File["attachments"]
}

func TestSaveStoresUnderCategory(t *testing.T) {
	store := memory.New()
	svc := NewService(store, 1<<20, zap.NewNop())
	files := fileHeaders(t, upload{"BDN 001.pdf", "application/pdf", "%PDF-1.7"})

	got, err := svc.Save(context.Background(), Bunker, files, "chief")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, strings.HasPrefix(got[0].Key, "bunker_attachments/"))
	assert.True(t, strings.HasSuffix(got[0].Key, ".pdf"))
	assert.Equal(t, "BDN 001.pdf", got[0].OriginalName)
	assert.Equal(t, int64(8), got[0].Size)

	info, err := store.Head(context.Background(), got[0].Key)
	require.NoError(t, err)
	assert.Equal(t, "chief", info.Metadata["uploaded_by"])
}

func TestValidate(t *testing.T) {
	svc := NewService(memory.New(), 10, zap.NewNop())
	cases := []struct {
		name string
		cat  Category
		up   upload
		want error
	}{
		{"bunker rejects images", Bunker, upload{"bdn.png", "image/png", "x"}, ErrUnsupportedType},
		{"no extension", Voyage, upload{"README", "", "x"}, ErrUnsupportedType},
		{"service limit", Voyage, upload{"big.pdf", "", "01234567890"}, ErrFileTooLarge},
		{"image ok", VesselImage, upload{"ship.JPG", "", "x"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Validate(tc.cat, fileHeaders(t, tc.up)[0])
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}

	assert.ErrorIs(t, svc.Validate(Voyage, nil), ErrFileRequired)
}

func TestSaveIsAllOrNothing(t *testing.T) {
	store := memory.New()
	svc := NewService(store, 1<<20, zap.NewNop())
	files := fileHeaders(t,
		upload{"a.pdf", "", "a"},
		upload{"b.exe", "", "b"},
	)

	_, err := svc.Save(context.Background(), Voyage, files, "u")
	require.ErrorIs(t, err, ErrUnsupportedType)
	all, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCleanup(t *testing.T) {
	store := memory.New()
	svc := NewService(store, 1<<20, zap.NewNop())
	got, err := svc.Save(context.Background(), Task, fileHeaders(t, upload{"a.txt", "", "a"}, upload{"b.csv", "", "b"}), "u")
	require.NoError(t, err)

	svc.Cleanup(context.Background(), append(Keys(got), "task_attachments/missing.txt"))
	all, err := store.List(context.Background(), "task_attachments/")
	require.NoError(t, err)
	assert.Empty(t, all)
}

// lateStore writes the object but reports the deadline, like a put whose
// response was lost after the object landed.
type lateStore struct {
	*memory.Store
}

func (s *lateStore) Put(ctx context.Context, key string, r io.Reader, opts blob.PutOptions) (blob.Info, error) {
	if _, err := s.Store.Put(context.Background(), key, r, opts); err != nil {
		return blob.Info{}, err
	}
	<-ctx.Done()
	return blob.Info{}, ctx.Err()
}

func TestSaveRemovesBlobWrittenPastDeadline(t *testing.T) {
	store := &lateStore{Store: memory.New()}
	svc := NewService(store, 1<<20, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.Save(ctx, Bunker, fileHeaders(t, upload{"bdn.pdf", "application/pdf", "%PDF"}), "u")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	all, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, all)
}
