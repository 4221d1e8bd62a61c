package hscode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmedwadee/fbrflow/internal/fbr"
)

type fakeSource struct {
	codes []fbr.HSCode
	err   error
	calls int
}

func (f *fakeSource) HSCodes(context.Context) ([]fbr.HSCode, error) {
	f.calls++

	if f.err != nil {
		return nil, f.err
	}

	return f.codes, nil
}

func TestCache_Verify(t *testing.T) {
	src := &fakeSource{codes: []fbr.HSCode{{Code: "5904.9000"}, {Code: "0101.2100"}}}
	cache := NewCache(src, time.Hour)

	ok, err := cache.Verify(context.Background(), "5904.9000")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cache.Verify(context.Background(), "9999.0000")
	require.NoError(t, err)
	assert.False(t, ok)

	// Both lookups come from the same fetch.
	assert.Equal(t, 1, src.calls)
}

func TestCache_ServesStaleOnFetchFailure(t *testing.T) {
	src := &fakeSource{codes: []fbr.HSCode{{Code: "5904.9000"}}}
	cache := NewCache(src, 0) // expire immediately

	ok, err := cache.Verify(context.Background(), "5904.9000")
	require.NoError(t, err)
	assert.True(t, ok)

	// Authority goes down; the cached catalogue keeps serving.
	src.err = errors.New("gateway unreachable")

	ok, err = cache.Verify(context.Background(), "5904.9000")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCache_FailsWithoutCatalogue(t *testing.T) {
	src := &fakeSource{err: errors.New("gateway unreachable")}
	cache := NewCache(src, time.Hour)

	_, err := cache.Verify(context.Background(), "5904.9000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetching HS code catalogue")
}

func TestStatic_Verify(t *testing.T) {
	s := NewStatic("5904.9000")

	ok, err := s.Verify(context.Background(), "5904.9000")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Verify(context.Background(), "0000.0000")
	require.NoError(t, err)
	assert.False(t, ok)
}
