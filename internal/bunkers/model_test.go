package bunkers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/rob"
)

func ptr[T any](v T) *T { return &v }

func baseInput() Input {
	return Input{
		ShipID:           ptr(int64(7)),
		BunkerDate:       ptr(time.Date(2025, 4, 2, 6, 0, 0, 0, time.UTC)),
		BDNNumber:        ptr(" OS-BK-004 "),
		BunkerCategory:   ptr("fuel"),
		FuelTypeKey:      ptr("VLSFO"),
		LubeOilTypeKey:   ptr("MECYL"),
		BunkeredQuantity: ptr(420.5),
		BunkerPortCode:   ptr("sgsin"),
		OperationType:    ptr("bunker"),
	}
}

func TestApplyNormalizes(t *testing.T) {
	rec := baseInput().Apply(Record{})
	assert.Equal(t, "OS-BK-004", rec.BDNNumber)
	assert.Equal(t, "FUEL", rec.BunkerCategory)
	assert.Equal(t, rob.OpBunker, rec.OperationType)
	assert.Equal(t, "SGSIN", *rec.BunkerPortCode)
	assert.Nil(t, rec.LubeOilTypeKey, "only the key of the record's category is kept")
	assert.Equal(t, "VLSFO", rec.ItemType())
	require.NoError(t, Validate(rec))
}

func TestApplyKeepsStoredFields(t *testing.T) {
	stored := baseInput().Apply(Record{ID: 3, IsActive: true})
	upd := Input{BunkeredQuantity: ptr(400.0), Remarks: ptr("re-sounded")}
	next := upd.Apply(stored)

	assert.Equal(t, int64(3), next.ID)
	assert.Equal(t, "OS-BK-004", next.BDNNumber)
	assert.Equal(t, 400.0, next.BunkeredQuantity)
	assert.Equal(t, "re-sounded", *next.Remarks)
}

func TestApplyDropsStaleCorrectionSign(t *testing.T) {
	stored := Input{OperationType: ptr("CORRECTION"), CorrectionSign: ptr("-")}.Apply(Record{})
	next := Input{OperationType: ptr("DEBUNKER")}.Apply(stored)
	assert.Nil(t, next.CorrectionSign)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		mod  func(in *Input)
	}{
		{"no ship", func(in *Input) { in.ShipID = ptr(int64(0)) }},
		{"no date", func(in *Input) { in.BunkerDate = nil }},
		{"bad category", func(in *Input) { in.BunkerCategory = ptr("WATER") }},
		{"bad operation", func(in *Input) { in.OperationType = ptr("TRANSFER") }},
		{"missing fuel type", func(in *Input) { in.FuelTypeKey = nil }},
		{"negative quantity", func(in *Input) { in.BunkeredQuantity = ptr(-1.0) }},
		{"lo topup on fuel", func(in *Input) { in.OperationType = ptr("LO_TOPUP") }},
		{"correction without sign", func(in *Input) { in.OperationType = ptr("CORRECTION") }},
		{"sign without correction", func(in *Input) { in.CorrectionSign = ptr("+") }},
		{"debunker without bdn", func(in *Input) { in.OperationType = ptr("DEBUNKER"); in.BDNNumber = ptr("") }},
		{"sulphur over 100", func(in *Input) { in.SulphurContentPercent = ptr(101.0) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := baseInput()
			tc.mod(&in)
			assert.ErrorIs(t, Validate(in.Apply(Record{})), ErrInvalid)
		})
	}

	t.Run("lube oil needs its own key", func(t *testing.T) {
		in := baseInput()
		in.BunkerCategory = ptr("LUBE_OIL")
		in.LubeOilTypeKey = nil
		assert.ErrorIs(t, Validate(in.Apply(Record{})), ErrInvalid)
	})

	t.Run("supply without bdn is allowed", func(t *testing.T) {
		in := baseInput()
		in.BDNNumber = ptr("")
		assert.NoError(t, Validate(in.Apply(Record{})))
	})
}

func TestEditEffects(t *testing.T) {
	stored := baseInput().Apply(Record{})
	vessel := rob.Key{ShipID: 7, Category: rob.CategoryFuel, ItemType: "VLSFO"}
	batch := rob.Key{ShipID: 7, Category: rob.CategoryFuel, ItemType: "VLSFO", BDNNumber: "OS-BK-004"}

	t.Run("quantity edit", func(t *testing.T) {
		next := Input{BunkeredQuantity: ptr(400.5)}.Apply(stored)
		d := rob.Diff(stored.Effect(), next.Effect())
		assert.InDelta(t, -20.0, d[vessel], 1e-9)
		assert.InDelta(t, -20.0, d[batch], 1e-9)
	})

	t.Run("fuel type edit moves quantity between chains", func(t *testing.T) {
		next := Input{FuelTypeKey: ptr("MGO")}.Apply(stored)
		d := rob.Diff(stored.Effect(), next.Effect())
		assert.InDelta(t, -420.5, d[vessel], 1e-9)
		assert.InDelta(t, 420.5, d[rob.Key{ShipID: 7, Category: rob.CategoryFuel, ItemType: "MGO"}], 1e-9)
		assert.Len(t, d, 4)
	})

	t.Run("remarks only edit touches no chain", func(t *testing.T) {
		next := Input{Remarks: ptr("ok")}.Apply(stored)
		assert.Empty(t, rob.Diff(stored.Effect(), next.Effect()))
	})
}
