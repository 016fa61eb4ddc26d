package tanks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/lookups"
)

func ptr[T any](v T) *T { return &v }

func TestLookupCategory(t *testing.T) {
	got, err := LookupCategory("lube_oil")
	require.NoError(t, err)
	assert.Equal(t, lookups.LubeOilTypes, got)

	_, err = LookupCategory("BALLAST")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestPatchValidate(t *testing.T) {
	p := Patch{VesselID: ptr(int64(1)), TankName: ptr("No.1 HFO P"), ContentCategory: ptr("fuel")}
	require.NoError(t, p.Validate(true))
	assert.Equal(t, ContentFuel, *p.ContentCategory)

	cases := map[string]Patch{
		"missing fields":   {TankName: ptr("x")},
		"overfilled":       {VesselID: ptr(int64(1)), TankName: ptr("x"), ContentCategory: ptr("WATER"), CapacityM3: ptr(10.0), CurrentVolumeM3: ptr(11.0)},
		"negative depth":   {VesselID: ptr(int64(1)), TankName: ptr("x"), ContentCategory: ptr("WATER"), DepthM: ptr(-1.0)},
		"unknown category": {VesselID: ptr(int64(1)), TankName: ptr("x"), ContentCategory: ptr("CARGO")},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, p.Validate(true), ErrInvalid)
		})
	}
}
