package blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanKey(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: "bunker_attachments/a.pdf", want: "bunker_attachments/a.pdf"},
		{name: "backslashes", in: `voyage_attachments\x.pdf`, want: "voyage_attachments/x.pdf"},
		{name: "dot segments", in: "a/./b.pdf", want: "a/b.pdf"},
		{name: "empty", in: "  ", wantErr: true},
		{name: "absolute", in: "/etc/passwd", wantErr: true},
		{name: "traversal", in: "a/../../etc/passwd", wantErr: true},
		{name: "dotted name is fine", in: "a/..pdf", want: "a/..pdf"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CleanKey(tc.in)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCloneMetadata(t *testing.T) {
	assert.Nil(t, CloneMetadata(nil))
	in := map[string]string{"original_name": "bdn.pdf"}
	out := CloneMetadata(in)
	out["original_name"] = "changed"
	assert.Equal(t, "bdn.pdf", in["original_name"])
}
