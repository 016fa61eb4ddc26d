package voyages

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestPatchValidate(t *testing.T) {
	etd := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)

	t.Run("create needs ship", func(t *testing.T) {
		p := Patch{}
		assert.ErrorIs(t, p.Validate(true), ErrInvalid)
	})

	t.Run("port codes upper-cased", func(t *testing.T) {
		p := Patch{ShipID: ptr(int64(1)), DeparturePortCode: ptr(" sgsin"), ArrivalPortCode: ptr("nlrtm")}
		require.NoError(t, p.Validate(true))
		assert.Equal(t, "SGSIN", *p.DeparturePortCode)
		assert.Equal(t, "NLRTM", *p.ArrivalPortCode)
	})

	cases := []struct {
		name string
		p    Patch
	}{
		{"eta before etd", Patch{ETD: &etd, ETA: ptr(etd.Add(-time.Hour))}},
		{"ata before atd", Patch{ATD: &etd, ATA: ptr(etd.Add(-time.Minute))}},
		{"unknown status", Patch{VoyageStatus: ptr("Sunk")}},
		{"negative distance", Patch{DistanceSailedNM: ptr(-3.0)}},
		{"blank number", Patch{VoyageNumber: ptr(" ")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.p.Validate(false), ErrInvalid)
		})
	}
}

func TestDefaultLegName(t *testing.T) {
	assert.Nil(t, defaultLegName(LegPatch{}))
	assert.Equal(t, "SGSIN - ?", *defaultLegName(LegPatch{DeparturePortCode: ptr("SGSIN")}))
	assert.Equal(t, "Ballast", *defaultLegName(LegPatch{LegName: ptr("Ballast"), DeparturePortCode: ptr("SGSIN")}))
}
