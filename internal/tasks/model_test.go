package tasks

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestPatchValidate(t *testing.T) {
	t.Run("create needs member task and status", func(t *testing.T) {
		assert.ErrorIs(t, (&Patch{Task: ptr("x")}).Validate(true), ErrInvalid)
	})

	t.Run("normalizes codes", func(t *testing.T) {
		p := Patch{MemberID: ptr(int64(1)), Task: ptr(" fix report "), StatusCode: ptr("open"), ProductCode: ptr("memp_shore")}
		require.NoError(t, p.Validate(true))
		assert.Equal(t, "fix report", *p.Task)
		assert.Equal(t, "OPEN", *p.StatusCode)
		assert.Equal(t, "MEMP_SHORE", *p.ProductCode)
		assert.Nil(t, p.CompletionDate)
	})

	t.Run("done stamps completion date", func(t *testing.T) {
		p := Patch{StatusCode: ptr("done")}
		require.NoError(t, p.Validate(false))
		require.NotNil(t, p.CompletionDate)
	})

	t.Run("rejects inverted range", func(t *testing.T) {
		start := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 0, -1)
		assert.ErrorIs(t, (&Patch{StartDate: &start, EndDate: &end}).Validate(false), ErrInvalid)
	})

	t.Run("rejects negative hours", func(t *testing.T) {
		assert.ErrorIs(t, (&Patch{ManHours: ptr(-2.0)}).Validate(false), ErrInvalid)
	})
}

func TestWriteCSV(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	err := WriteCSV(&buf, []Task{
		{Task: "ROB chain review, part 1", StatusCode: "DONE", ManHours: ptr(3.5), TaskDate: day, CompletionDate: &day},
		{Task: "MRV export", StatusCode: "OPEN", TaskDate: day.AddDate(0, 0, 1)},
	})
	require.NoError(t, err)

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, exportHeader, recs[0])
	assert.Equal(t, "ROB chain review, part 1", recs[1][1])
	assert.Equal(t, "3.5", recs[1][5])
	assert.Equal(t, "2025-03-10", recs[1][9])
	assert.Equal(t, "", recs[2][5])
}
