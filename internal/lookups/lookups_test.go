package lookups

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	calls int
	err   error
}

func (f *fakeSource) List(_ context.Context, category string) ([]Item, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []Item{{Code: "HFO", Name: "Heavy Fuel Oil"}, {Code: "MGO", Name: "Marine Gas Oil"}}, nil
}

func TestServiceWithoutCache(t *testing.T) {
	src := &fakeSource{}
	svc := NewService(src, nil, time.Minute, zap.NewNop())

	items, err := svc.List(context.Background(), FuelTypes)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	ok, err := svc.Has(context.Background(), FuelTypes, "MGO")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Has(context.Background(), FuelTypes, "LNG")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, src.calls)
}

func TestServiceErrors(t *testing.T) {
	src := &fakeSource{err: errors.New("db down")}
	svc := NewService(src, nil, time.Minute, zap.NewNop())

	_, err := svc.List(context.Background(), "planets")
	assert.ErrorIs(t, err, ErrUnknownCategory)
	assert.Zero(t, src.calls)

	_, err = svc.List(context.Background(), ReportTypes)
	assert.EqualError(t, err, "db down")
}
