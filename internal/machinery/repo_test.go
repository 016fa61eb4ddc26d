package machinery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocate(t *testing.T) {
	existing := map[string]int32{"AE": 2}
	items := []AssignItem{
		{MachineryTypeKey: "ME"},
		{MachineryTypeKey: "AE"},
		{MachineryTypeKey: " AE "},
		{MachineryTypeKey: "BLR"},
	}
	got, err := allocate(existing, items)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 3, 4, 1}, got)
	assert.Equal(t, int32(2), existing["AE"], "input map is not mutated")
}

func TestAllocateRejects(t *testing.T) {
	_, err := allocate(nil, []AssignItem{{MachineryTypeKey: " "}})
	assert.ErrorIs(t, err, ErrInvalid)

	neg := -5.0
	_, err = allocate(nil, []AssignItem{{MachineryTypeKey: "ME", PowerKW: &neg}})
	assert.ErrorIs(t, err, ErrInvalid)
}
