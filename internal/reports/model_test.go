package reports

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/rob"
)

func ptr[T any](v T) *T { return &v }

func TestParseOffset(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"UTC", 0},
		{"+05:30", 5*time.Hour + 30*time.Minute},
		{"UTC-3", -3 * time.Hour},
		{"GMT+0800", 8 * time.Hour},
		{"-09:45", -(9*time.Hour + 45*time.Minute)},
		{"utc+14", 14 * time.Hour},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseOffset(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	for _, bad := range []string{"Asia/Kolkata", "+15", "+05:75", "5"} {
		_, err := ParseOffset(bad)
		assert.ErrorIs(t, err, ErrInvalid, bad)
	}
}

func TestToUTC(t *testing.T) {
	local := time.Date(2025, 6, 1, 12, 0, 0, 0, time.FixedZone("browser", 2*3600))
	got, err := ToUTC(local, "+05:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 6, 30, 0, 0, time.UTC), got, "the clock reading is taken in the port zone")

	got, err = ToUTC(time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC), "UTC-3")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 1, 4, 0, 0, 0, time.UTC), got)
}

func TestPrefill(t *testing.T) {
	prev := &Report{
		VoyageID: ptr(int64(4)), VoyageLegID: ptr(int64(9)), VoyageNumber: ptr("OS-V-004"), LegNumber: ptr(2),
		FromPortCode: ptr("SGSIN"), ToPortCode: ptr("NLRTM"), TimeZoneAtPort: ptr("+08:00"),
	}

	in := Input{ShipID: 1, ReportTypeKey: "noon", ReportDateTimeLocal: time.Now()}
	in.ToPortCode = ptr("DEHAM")
	in.prefill(prev)

	assert.Equal(t, int64(4), *in.VoyageID)
	assert.Equal(t, "OS-V-004", *in.VoyageNumber)
	assert.Equal(t, "SGSIN", *in.FromPortCode)
	assert.Equal(t, "DEHAM", *in.ToPortCode, "explicit values win")
	assert.Equal(t, "+08:00", in.TimeZoneAtPort)

	first := Input{ShipID: 1}
	first.prefill(nil)
	assert.Nil(t, first.VoyageID)
}

func TestInputValidate(t *testing.T) {
	in := Input{ShipID: 1, ReportTypeKey: " noon ", ReportDateTimeLocal: time.Now(), CurrentPortCode: ptr("sgsin")}
	require.NoError(t, in.Validate())
	assert.Equal(t, "NOON", in.ReportTypeKey)
	assert.Equal(t, "SGSIN", *in.CurrentPortCode)

	assert.ErrorIs(t, (&Input{ReportTypeKey: "NOON", ReportDateTimeLocal: time.Now()}).Validate(), ErrInvalid)
	assert.ErrorIs(t, (&Input{ShipID: 1, ReportTypeKey: "NOON"}).Validate(), ErrInvalid)
	assert.ErrorIs(t, (&Input{ShipID: 1, ReportTypeKey: "NOON", ReportDateTimeLocal: time.Now(), TimeZoneAtPort: "Mars"}).Validate(), ErrInvalid)
}

func TestPatchValidate(t *testing.T) {
	p := Patch{
		Fuel: []FuelLine{{FuelTypeKey: " vlsfo ", BDNNumber: ptr(" "), ConsumedMT: 12.5}},
		Lube: []LubeLine{{LubeOilTypeKey: "mecyl", BDNNumber: ptr("OS-BK-002 "), ConsumedQty: 80}},
	}
	require.NoError(t, p.Validate())
	assert.Equal(t, "VLSFO", p.Fuel[0].FuelTypeKey)
	assert.Nil(t, p.Fuel[0].BDNNumber, "blank BDN means vessel level only")
	assert.Equal(t, "OS-BK-002", *p.Lube[0].BDNNumber)

	bad := []Patch{
		{Fuel: []FuelLine{{FuelTypeKey: "", ConsumedMT: 1}}},
		{Fuel: []FuelLine{{FuelTypeKey: "MGO", ConsumedMT: -1}}},
		{Lube: []LubeLine{{LubeOilTypeKey: "", ConsumedQty: 1}}},
		{Latitude: ptr(91.0)},
		{Longitude: ptr(-181.0)},
		{SteamingHours: ptr(-2.0)},
		{TimeZoneAtPort: ptr("nowhere")},
	}
	for i, b := range bad {
		assert.ErrorIs(t, b.Validate(), ErrInvalid, "case %d", i)
	}
}

func TestConsumptionLines(t *testing.T) {
	rep := Report{
		Fuel: []FuelLine{
			{FuelTypeKey: "VLSFO", BDNNumber: ptr("OS-BK-001"), ConsumedMT: 10},
			{FuelTypeKey: "VLSFO", ConsumedMT: 2},
		},
		Lube: []LubeLine{{LubeOilTypeKey: "MECYL", BDNNumber: ptr("OS-BK-002"), ConsumedQty: 50}},
	}
	lines := rep.ConsumptionLines()
	require.Len(t, lines, 3)

	vessel, batch, err := rob.GroupConsumption(3, lines)
	require.NoError(t, err)
	assert.InDelta(t, 12.0, vessel[rob.Key{ShipID: 3, Category: rob.CategoryFuel, ItemType: "VLSFO"}], 1e-9)
	assert.InDelta(t, 10.0, batch[rob.Key{ShipID: 3, Category: rob.CategoryFuel, ItemType: "VLSFO", BDNNumber: "OS-BK-001"}], 1e-9)
	assert.InDelta(t, 50.0, vessel[rob.Key{ShipID: 3, Category: rob.CategoryLubeOil, ItemType: "MECYL"}], 1e-9)
}
