package ports

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "NLRTM", NormalizeCode(" nlrtm "))
}

func TestPatchNormalize(t *testing.T) {
	cases := []struct {
		name    string
		patch   Patch
		wantErr bool
	}{
		{"empty patch", Patch{}, false},
		{"code upper-cased", Patch{PortCode: ptr("sgsin")}, false},
		{"blank code", Patch{PortCode: ptr("  ")}, true},
		{"blank name", Patch{PortName: ptr("")}, true},
		{"latitude range", Patch{Latitude: ptr(91.0)}, true},
		{"longitude range", Patch{Longitude: ptr(-181.0)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.patch.normalize()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
				return
			}
			assert.NoError(t, err)
		})
	}

	p := Patch{PortCode: ptr("sgsin")}
	assert.NoError(t, p.normalize())
	assert.Equal(t, "SGSIN", *p.PortCode)
}
